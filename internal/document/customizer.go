// Package document fills the invoice spreadsheet template with a customer's
// branding and locks it down before delivery.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png" // register PNG for DecodeConfig
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/heartmarshall/brandkit/internal/domain"
)

// DefaultPassword protects generated sheets when none is configured.
const DefaultPassword = "etsysc123"

// Pixel conversion factors between spreadsheet units and the logo size.
const (
	pxPerColWidthUnit = 7.5
	pxPerRowPoint     = 1.33

	fallbackColWidth  = 8
	fallbackRowHeight = 15
)

// Template cell layout.
const (
	logoCell         = "A1"
	businessNameCell = "A2"
	addressCell      = "A3"
	cityStateZipCell = "A4"
	phoneCell        = "A5"
	emailCell        = "A6"
	taxLabelCell     = "D30"
	taxFormulaCell   = "E30"
	currencyCell     = "C32"
	currencyEndCell  = "E32"
)

// Options configures a Customizer.
type Options struct {
	// TempDir receives logo and workbook artifacts. Empty means os.TempDir().
	TempDir  string
	Password string
}

// Customizer produces branded, protected workbooks from a template.
type Customizer struct {
	tempDir  string
	password string
	log      *slog.Logger
}

// NewCustomizer creates a Customizer.
func NewCustomizer(log *slog.Logger, opts Options) *Customizer {
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	return &Customizer{
		tempDir:  opts.TempDir,
		password: opts.Password,
		log:      log.With("service", "document"),
	}
}

// Result is a customized workbook and the temp files created for it.
// TempPaths is populated even when Customize fails part way; the caller owns
// deleting every path in it.
type Result struct {
	File      *excelize.File
	Sheet     string
	TempPaths []string
}

// Close releases the workbook. It does not touch TempPaths.
func (r *Result) Close() error {
	if r == nil || r.File == nil {
		return nil
	}
	return r.File.Close()
}

// Customize opens templatePath and writes sub into the active sheet: contact
// block, tax line, currency note, logo at A1 and, when watermarkPath points to
// an existing file, a background watermark. Every sheet is then protected.
func (c *Customizer) Customize(templatePath string, sub domain.Submission, logoPNG []byte, watermarkPath string) (*Result, error) {
	res := &Result{}

	taxValue, err := strconv.ParseFloat(strings.TrimSpace(sub.TaxPercent), 64)
	if err != nil {
		return res, domain.NewValidationError("tax_percent", "must be a number")
	}

	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return res, fmt.Errorf("document: open template %s: %w: %w", templatePath, domain.ErrTemplate, err)
	}
	res.File = f
	res.Sheet = f.GetSheetName(f.GetActiveSheetIndex())

	fail := func(step string, err error) (*Result, error) {
		return res, fmt.Errorf("document: %s: %w: %w", step, domain.ErrTemplate, err)
	}

	if err := c.applyWatermark(f, res.Sheet, watermarkPath); err != nil {
		return fail("watermark", err)
	}
	if err := c.fillCells(f, res.Sheet, sub, taxValue); err != nil {
		return fail("fill cells", err)
	}

	logoPath, err := c.writeTemp(logoPattern, logoPNG)
	if logoPath != "" {
		res.TempPaths = append(res.TempPaths, logoPath)
	}
	if err != nil {
		return fail("write logo", err)
	}
	if err := c.insertLogo(f, res.Sheet, logoPath, logoPNG); err != nil {
		// A document without a logo is still useful to the customer.
		c.log.Warn("logo not embedded", slog.String("brand_id", sub.BrandID), slog.String("error", err.Error()))
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Identifier:  sub.BrandID,
		Title:       "Invoice - " + sub.BusinessName,
		Subject:     "Invoice template",
		Creator:     sub.BusinessName,
		Description: "Brand ID " + sub.BrandID,
	}); err != nil {
		return fail("doc props", err)
	}

	if err := c.protect(f); err != nil {
		return fail("protect", err)
	}

	return res, nil
}

// Materialize writes the workbook to a uniquely named invoice-*.xlsx file in
// the temp dir and records it in res.TempPaths.
func (c *Customizer) Materialize(res *Result) (string, error) {
	if res == nil || res.File == nil {
		return "", fmt.Errorf("document: materialize: %w: no workbook", domain.ErrTemplate)
	}

	out, err := os.CreateTemp(c.tempDir, workbookPattern)
	if err != nil {
		return "", fmt.Errorf("document: create output: %w: %w", domain.ErrTemplate, err)
	}
	res.TempPaths = append(res.TempPaths, out.Name())

	_, werr := res.File.WriteTo(out)
	cerr := out.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return out.Name(), fmt.Errorf("document: write output: %w: %w", domain.ErrTemplate, err)
	}
	return out.Name(), nil
}

func (c *Customizer) applyWatermark(f *excelize.File, sheet, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		c.log.Debug("watermark not found, skipping", slog.String("path", path))
		return nil
	}
	return f.SetSheetBackground(sheet, path)
}

func (c *Customizer) fillCells(f *excelize.File, sheet string, sub domain.Submission, tax float64) error {
	values := []struct {
		cell  string
		value string
	}{
		{businessNameCell, sub.BusinessName},
		{addressCell, sub.Address},
		{cityStateZipCell, sub.CityStateZip},
		{phoneCell, sub.Phone},
		{emailCell, sub.Email},
		{taxLabelCell, fmt.Sprintf("Tax (%s%%)", strings.TrimSpace(sub.TaxPercent))},
		{currencyCell, "All amounts shown in " + sub.Currency},
	}
	for _, v := range values {
		if err := f.SetCellValue(sheet, v.cell, v.value); err != nil {
			return fmt.Errorf("set %s: %w", v.cell, err)
		}
	}

	if err := f.SetCellFormula(sheet, taxFormulaCell, TaxFormula(tax)); err != nil {
		return fmt.Errorf("set %s: %w", taxFormulaCell, err)
	}

	if err := f.MergeCell(sheet, currencyCell, currencyEndCell); err != nil {
		return fmt.Errorf("merge %s:%s: %w", currencyCell, currencyEndCell, err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("new style: %w", err)
	}
	if err := f.SetCellStyle(sheet, currencyCell, currencyCell, style); err != nil {
		return fmt.Errorf("style %s: %w", currencyCell, err)
	}
	return nil
}

// TaxFormula returns the E30 formula. The IsGoogleSheets guard is a defined
// name in the template and must be kept as is.
func TaxFormula(tax float64) string {
	return fmt.Sprintf(`IF(NOT(IsGoogleSheets),E29*%s/100,"GOOGLE SHEETS DETECTED")`,
		strconv.FormatFloat(tax, 'f', -1, 64))
}

func (c *Customizer) insertLogo(f *excelize.File, sheet, path string, logoPNG []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(logoPNG))
	if err != nil {
		return fmt.Errorf("decode logo: %w", err)
	}

	colWidth, err := f.GetColWidth(sheet, "A")
	if err != nil || colWidth <= 0 {
		colWidth = fallbackColWidth
	}
	rowHeight, err := f.GetRowHeight(sheet, 1)
	if err != nil || rowHeight <= 0 {
		rowHeight = fallbackRowHeight
	}

	scaleX, scaleY := LogoScale(cfg.Width, cfg.Height, colWidth, rowHeight)
	locked := true
	return f.AddPicture(sheet, logoCell, path, &excelize.GraphicOptions{
		ScaleX:  scaleX,
		ScaleY:  scaleY,
		Locked:  &locked,
		AltText: "logo",
	})
}

// LogoScale returns the scale factors that fit a w×h pixel image into the
// box implied by column width colWidth and row height rowHeight.
func LogoScale(w, h int, colWidth, rowHeight float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	targetW := float64(int(colWidth * pxPerColWidthUnit))
	targetH := float64(int(rowHeight * pxPerRowPoint))
	return targetW / float64(w), targetH / float64(h)
}

func (c *Customizer) protect(f *excelize.File) error {
	for _, sheet := range f.GetSheetList() {
		// Every allow-flag left false: no structural edits, no selection,
		// objects and scenarios locked.
		if err := f.ProtectSheet(sheet, &excelize.SheetProtectionOptions{
			Password: c.password,
		}); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	return nil
}

func (c *Customizer) writeTemp(pattern string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(c.tempDir, pattern)
	if err != nil {
		return "", err
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	return tmp.Name(), errors.Join(werr, cerr)
}
