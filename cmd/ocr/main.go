// Command cyrocr detects and transcribes Cyrillic text in document images.
package main

import (
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/cmd/ocr/cmd"
)

func main() {
	cmd.Execute()
}
