package office

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

const documentPart = "word/document.xml"

// rawParagraphs returns the markup of each <w:p> directly under <w:body>,
// in order. These line up one to one with the *docx.Paragraph items
// go-docx decodes, which also only looks at direct body children.
func (d *Document) rawParagraphs() ([][]byte, error) {
	var part []byte
	for _, f := range d.zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", documentPart, err)
		}
		part, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", documentPart, err)
		}
		break
	}
	if part == nil {
		return nil, fmt.Errorf("%s not found in archive", documentPart)
	}
	return scanParagraphs(part)
}

func scanParagraphs(data []byte) ([][]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out       [][]byte
		depth     int
		bodyDepth = -1
		start     int64 = -1
	)
	for {
		off := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", documentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case bodyDepth < 0 && t.Name.Local == "body":
				bodyDepth = depth
			case bodyDepth > 0 && depth == bodyDepth+1 && t.Name.Local == "p":
				start = off
			}
		case xml.EndElement:
			if start >= 0 && depth == bodyDepth+1 && t.Name.Local == "p" {
				out = append(out, bytes.Clone(data[start:dec.InputOffset()]))
				start = -1
			}
			depth--
		}
	}
	return out, nil
}
