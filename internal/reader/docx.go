package reader

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/joseph-ayodele/fichas/internal/extract"
)

// loadDocumentXML returns word/document.xml of a .docx file.
func loadDocumentXML(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty document.xml")
	}
	return content, nil
}

// readDocxCells walks the body and emits one cell per w:tc of each top-level
// table. Text of nested tables is folded into the enclosing cell.
func readDocxCells(path string) ([]extract.RawCell, error) {
	content, err := loadDocumentXML(path)
	if err != nil {
		return nil, err
	}
	return parseTableCells(strings.NewReader(content))
}

func parseTableCells(r io.Reader) ([]extract.RawCell, error) {
	dec := xml.NewDecoder(r)
	var (
		cells    []extract.RawCell
		tblDepth int
		table    = -1
		row      = -1
		inCell   bool
		inText   bool
		inRun    int
		paras    []string
		para     strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					table++
					row = -1
				}
			case "tr":
				if tblDepth == 1 {
					row++
				}
			case "tc":
				if tblDepth == 1 {
					inCell = true
					paras = paras[:0]
					para.Reset()
				}
			case "r":
				inRun++
			case "t":
				inText = inCell
			case "tab":
				// w:tab also names tab stops under w:pPr/w:tabs.
				if inCell && inRun > 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inCell {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				if inCell {
					paras = append(paras, para.String())
					para.Reset()
				}
			case "tc":
				if tblDepth == 1 && inCell {
					if para.Len() > 0 {
						paras = append(paras, para.String())
						para.Reset()
					}
					cells = append(cells, extract.RawCell{
						Table: table,
						Row:   row,
						Text:  strings.Join(paras, "\n"),
					})
					inCell = false
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return cells, nil
}

// readDocxPages renders every paragraph (table cells included) as a line and
// splits pages at explicit page breaks.
func readDocxPages(path string) ([]string, error) {
	content, err := loadDocumentXML(path)
	if err != nil {
		return nil, err
	}
	return parseParagraphPages(strings.NewReader(content))
}

func parseParagraphPages(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		pages  []string
		page   strings.Builder
		line   strings.Builder
		inText bool
		inRun  int
	)
	newPage := func() {
		if line.Len() > 0 {
			page.WriteString(line.String())
			line.Reset()
		}
		pages = append(pages, page.String())
		page.Reset()
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = true
			case "tab":
				if inRun > 0 {
					line.WriteByte('\t')
				}
			case "cr":
				line.WriteByte('\n')
			case "br":
				if attr(t, "type") == "page" {
					newPage()
				} else {
					line.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				page.WriteString(line.String())
				page.WriteByte('\n')
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	if page.Len() > 0 || line.Len() > 0 || len(pages) == 0 {
		newPage()
	}
	return pages, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
