package app

import (
    "bufio"
    "fmt"
    "os"
    "strings"

    "github.com/jung-kurt/gofpdf"
)

const pdfFontFamily = "article"

// writePDF renders the Markdown result as a simple A4 PDF. The built-in core
// fonts cannot encode CJK text, so a UTF-8 TrueType font must be supplied;
// the same face is registered for the bold style used by headings.
func writePDF(markdown, outPath, fontPath string) error {
    if _, err := os.Stat(fontPath); err != nil {
        return fmt.Errorf("pdf font: %w", err)
    }
    pdf := gofpdf.New("P", "mm", "A4", "")
    pdf.AddUTF8Font(pdfFontFamily, "", fontPath)
    pdf.AddUTF8Font(pdfFontFamily, "B", fontPath)
    pdf.SetFont(pdfFontFamily, "", 11)
    pdf.SetAutoPageBreak(true, 15)
    pdf.AddPage()

    scanner := bufio.NewScanner(strings.NewReader(markdown))
    scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
    for scanner.Scan() {
        s := strings.TrimSpace(scanner.Text())
        switch {
        case s == "":
            pdf.Ln(4)
        case s == "---":
            y := pdf.GetY() + 2
            pdf.Line(10, y, 200, y)
            pdf.Ln(5)
        case strings.HasPrefix(s, "#"):
            level := 0
            for level < len(s) && s[level] == '#' { level++ }
            text := strings.TrimSpace(s[level:])
            if text == "" { continue }
            size := 16.0
            if level >= 2 { size = 13.0 }
            pdf.SetFont(pdfFontFamily, "B", size)
            pdf.MultiCell(0, 8, text, "", "L", false)
            pdf.SetFont(pdfFontFamily, "", 11)
        case strings.HasPrefix(s, "> "):
            pdf.SetTextColor(90, 90, 90)
            pdf.MultiCell(0, 5, strings.TrimPrefix(s, "> "), "", "L", false)
            pdf.SetTextColor(0, 0, 0)
        default:
            pdf.MultiCell(0, 6, s, "", "L", false)
        }
    }
    if err := scanner.Err(); err != nil {
        return fmt.Errorf("scan markdown: %w", err)
    }
    return pdf.OutputFileAndClose(outPath)
}
