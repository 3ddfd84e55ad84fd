package docx

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beevik/etree"

	"phieu/internal/assets"
	"phieu/internal/config"
	"phieu/internal/logging"
)

// signaturePlaceholder is recognized in addition to the configured anchor
// text, for templates prepared with an explicit slot.
const signaturePlaceholder = "{{signature}}"

// docPr ids for inserted drawings start well above anything a real template
// ships with.
const docPrBase = 9000

// Policy decides what a per-image decode failure does to the run.
type Policy string

const (
	// PolicySkip records a warning and assembles without the image.
	PolicySkip Policy = "skip"
	// PolicyFail aborts assembly on the first decode failure.
	PolicyFail Policy = "fail"
)

// ParsePolicy converts the config value into a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicySkip, "":
		return PolicySkip, nil
	case PolicyFail:
		return PolicyFail, nil
	default:
		return "", fmt.Errorf("docx: unknown decode-error policy %q", value)
	}
}

// SignatureImage is the user-supplied signature. Input-only; never mutated.
type SignatureImage struct {
	Name    string
	Content []byte
}

// Warning records a non-fatal assembly problem, currently always a skipped
// image.
type Warning struct {
	Asset string
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Asset, w.Err)
}

// AssembledDocument is the finished artifact.
type AssembledDocument struct {
	Data []byte
	// ImageBlocks counts the appended appendix images (the signature overlay
	// is not included).
	ImageBlocks int
}

// Options configures assembly.
type Options struct {
	AppendixMarker       string
	SignatureAnchor      string
	ImageWidthInches     float64
	SignatureWidthInches float64
	OnDecodeError        Policy
}

// OptionsFromConfig maps the [assembly] config section into Options.
func OptionsFromConfig(cfg config.Assembly) (Options, error) {
	policy, err := ParsePolicy(cfg.OnDecodeError)
	if err != nil {
		return Options{}, err
	}
	return Options{
		AppendixMarker:       cfg.AppendixMarker,
		SignatureAnchor:      cfg.SignatureAnchor,
		ImageWidthInches:     cfg.ImageWidthInches,
		SignatureWidthInches: cfg.SignatureWidthInches,
		OnDecodeError:        policy,
	}, nil
}

// Assembler merges fetched images and a signature into a template document.
type Assembler struct {
	opts   Options
	logger *slog.Logger
}

// NewAssembler constructs an assembler.
func NewAssembler(opts Options, logger *slog.Logger) *Assembler {
	if opts.ImageWidthInches <= 0 {
		opts.ImageWidthInches = 3.0
	}
	if opts.SignatureWidthInches <= 0 {
		opts.SignatureWidthInches = 2.0
	}
	if opts.OnDecodeError == "" {
		opts.OnDecodeError = PolicySkip
	}
	return &Assembler{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "docx"),
	}
}

// Assemble produces the final document: every image appended after the
// appendix section in the supplied order, then exactly one signature
// overlay at the signer anchor. The template bytes are never modified; a
// new artifact is returned.
func (a *Assembler) Assemble(template []byte, images []assets.Asset, signature SignatureImage) (*AssembledDocument, []Warning, error) {
	if len(signature.Content) == 0 {
		return nil, nil, errors.New("docx: signature image required")
	}

	c, err := openContainer(template)
	if err != nil {
		return nil, nil, err
	}
	body := c.body()

	insertAfter, err := a.findAppendixEnd(body)
	if err != nil {
		return nil, nil, err
	}
	anchor, err := a.findSignatureAnchor(body)
	if err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	appended := 0
	for _, asset := range images {
		normalized, err := normalizeImage(assetLabel(asset), asset.Content, a.opts.ImageWidthInches)
		if err != nil {
			var decodeErr *ImageDecodeError
			if errors.As(err, &decodeErr) && a.opts.OnDecodeError == PolicySkip {
				a.logger.Warn("skipping undecodable image",
					logging.String("asset", decodeErr.Asset),
					logging.Error(decodeErr.Err),
				)
				warnings = append(warnings, Warning{Asset: decodeErr.Asset, Err: decodeErr})
				continue
			}
			return nil, warnings, err
		}

		baseName := fmt.Sprintf("phieu_appendix_%03d", appended+1)
		relID, err := c.addImagePart(baseName, normalized.extension, normalized.data)
		if err != nil {
			return nil, warnings, err
		}
		para := imageParagraph(relID, baseName, docPrBase+appended, normalized.widthEMU, normalized.heightEMU)
		body.InsertChildAt(insertAfter.Index()+1, para)
		insertAfter = para
		appended++
	}

	if err := a.overlaySignature(c, anchor, signature); err != nil {
		return nil, warnings, err
	}

	data, err := c.write()
	if err != nil {
		return nil, warnings, err
	}

	a.logger.Info("document assembled",
		logging.Int("image_blocks", appended),
		logging.Int("warnings", len(warnings)),
		logging.Int("bytes", len(data)),
	)
	return &AssembledDocument{Data: data, ImageBlocks: appended}, warnings, nil
}

// findAppendixEnd locates the last structural block whose text contains the
// appendix marker. Appended image paragraphs go immediately after it.
func (a *Assembler) findAppendixEnd(body *etree.Element) (*etree.Element, error) {
	marker := foldText(a.opts.AppendixMarker)
	var match *etree.Element
	for _, block := range body.ChildElements() {
		if block.Space != "w" {
			continue
		}
		if block.Tag != "p" && block.Tag != "tbl" {
			continue
		}
		if strings.Contains(blockText(block), marker) {
			match = block
		}
	}
	if match == nil {
		return nil, &TemplateStructureError{Marker: a.opts.AppendixMarker}
	}
	return match, nil
}

// findSignatureAnchor locates the paragraph carrying the signer anchor text
// or the {{signature}} placeholder.
func (a *Assembler) findSignatureAnchor(body *etree.Element) (*etree.Element, error) {
	anchor := foldText(a.opts.SignatureAnchor)
	var match *etree.Element
	for _, para := range body.ChildElements() {
		if para.Space != "w" || para.Tag != "p" {
			continue
		}
		text := blockText(para)
		if strings.Contains(text, signaturePlaceholder) || strings.Contains(text, anchor) {
			match = para
			break
		}
	}
	if match == nil {
		return nil, &SignatureAnchorError{Anchor: a.opts.SignatureAnchor}
	}
	return match, nil
}

// overlaySignature inserts exactly one signature run into the anchor
// paragraph, clearing a {{signature}} placeholder when present.
func (a *Assembler) overlaySignature(c *container, anchor *etree.Element, signature SignatureImage) error {
	normalized, err := normalizeImage(signatureLabel(signature), signature.Content, a.opts.SignatureWidthInches)
	if err != nil {
		// A corrupt signature cannot be skipped; the document must be signed.
		return err
	}

	relID, err := c.addImagePart("phieu_signature", normalized.extension, normalized.data)
	if err != nil {
		return err
	}

	clearPlaceholderText(anchor)
	run := imageRun(relID, "phieu_signature", docPrBase-1, normalized.widthEMU, normalized.heightEMU)
	anchor.AddChild(run)
	return nil
}

func clearPlaceholderText(para *etree.Element) {
	for _, el := range para.FindElements(".//w:t") {
		if strings.Contains(foldText(el.Text()), signaturePlaceholder) {
			el.SetText("")
		}
	}
}

func assetLabel(asset assets.Asset) string {
	if name := strings.TrimSpace(asset.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s[%d]", asset.Kind, asset.SourceOrderIndex)
}

func signatureLabel(signature SignatureImage) string {
	if name := strings.TrimSpace(signature.Name); name != "" {
		return name
	}
	return "signature"
}
