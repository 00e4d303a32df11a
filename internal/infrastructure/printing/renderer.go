package printing

import (
	"bytes"
	"context"
	"time"
)

// PaperSize names a supported output page
type PaperSize string

const (
	PaperSizeLetter    PaperSize = "LETTER"
	PaperSizeA4        PaperSize = "A4"
	PaperSizeReceipt80 PaperSize = "RECEIPT_80MM"
)

// IsValid reports whether the size is supported
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeLetter, PaperSizeA4, PaperSizeReceipt80:
		return true
	}
	return false
}

// Dimensions returns width and height in millimeters. Receipt paper has no
// fixed height and reports 0.
func (p PaperSize) Dimensions() (width, height float64) {
	switch p {
	case PaperSizeA4:
		return 210, 297
	case PaperSizeReceipt80:
		return 80, 0
	default:
		return 215.9, 279.4
	}
}

// IsContinuous reports whether the paper is a roll
func (p PaperSize) IsContinuous() bool { return p == PaperSizeReceipt80 }

// Margins in millimeters
type Margins struct {
	Top, Right, Bottom, Left float64
}

// DefaultMargins returns 10mm on every side
func DefaultMargins() Margins {
	return Margins{Top: 10, Right: 10, Bottom: 10, Left: 10}
}

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	// HTML content to render
	HTML      string
	PaperSize PaperSize
	Margins   Margins
	// Title for the PDF document metadata
	Title string
	// Footer HTML content (optional)
	FooterHTML string
	// Timeout overrides the default rendering timeout
	Timeout time.Duration
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	PDFData        []byte
	PageCount      int
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering HTML to PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeTemplateFailed   = "TEMPLATE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// estimatePageCount counts page objects in the PDF
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	// "/Type /Pages" also matches the page prefix
	count -= bytes.Count(pdfData, []byte("/Type /Pages"))
	return max(count, 1)
}
