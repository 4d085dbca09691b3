package reports

import (
	"fmt"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// WritePDFFile renders HTML to a PDF file. Requires the wkhtmltopdf
// binary on PATH.
func WritePDFFile(path, html string) error {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return fmt.Errorf("failed to initialize pdf generator: %w", err)
	}

	pdfg.Dpi.Set(150)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationLandscape)

	page := wkhtmltopdf.NewPageReader(strings.NewReader(html))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	if err := pdfg.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
