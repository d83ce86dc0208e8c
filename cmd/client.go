package cmd

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
)

// sendCommand writes one protocol line and returns the single reply byte.
func sendCommand(conn Connection, line string) (byte, error) {
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return 0, err
	}
	var b [1]byte
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// captureFrame requests a frame and reads exactly width*height pixel bytes.
func captureFrame(conn Connection, w, h int, dark bool) ([]byte, error) {
	cmd := "CAPTURE_FRAME"
	if dark {
		cmd = "CAPTURE_DARK"
	}
	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return nil, err
	}
	buf := make([]byte, w*h)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, fmt.Errorf("frame read failed: %v", err)
	}
	return buf, nil
}

// saveFrame writes a grayscale frame as PNG, or PGM when the path ends in
// .pgm.
func saveFrame(path string, w, h int, pix []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".pgm") {
		if _, err := fmt.Fprintf(f, "P5\n%d %d\n255\n", w, h); err != nil {
			return err
		}
		_, err = f.Write(pix)
		return err
	}

	img := &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}
	return png.Encode(f, img)
}

func replyString(b byte) string {
	switch b {
	case 'O':
		return "O (ok)"
	case 'E':
		return "E (error)"
	default:
		return fmt.Sprintf("%q (unexpected)", b)
	}
}
