package docx

import "fmt"

// TemplateStructureError reports a template without an identifiable appendix
// section. Fatal; the template is incompatible, retrying cannot help.
type TemplateStructureError struct {
	Marker string
}

func (e *TemplateStructureError) Error() string {
	return fmt.Sprintf("docx: no appendix section matching %q in template", e.Marker)
}

// SignatureAnchorError reports a template without the signer anchor the
// signature overlay requires. Fatal.
type SignatureAnchorError struct {
	Anchor string
}

func (e *SignatureAnchorError) Error() string {
	return fmt.Sprintf("docx: no signature anchor matching %q in template", e.Anchor)
}

// ImageDecodeError reports a single image that could not be decoded or
// normalized for insertion. Non-fatal by default; policy decides whether the
// run continues without the image.
type ImageDecodeError struct {
	Asset string
	Err   error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("docx: decode image %q: %v", e.Asset, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }
