package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"
)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"

	imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relNS        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	wpNS         = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	drawingNS    = "http://schemas.openxmlformats.org/drawingml/2006/main"
	pictureNS    = "http://schemas.openxmlformats.org/drawingml/2006/picture"
)

// zipEpoch is the fixed modification time stamped on every entry this
// package writes, keeping reruns byte-identical.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// container is the in-memory working copy of one .docx package.
type container struct {
	source   *zip.Reader
	names    map[string]struct{}
	document *etree.Document
	rels     *etree.Document
	types    *etree.Document
	// media holds parts appended by this run, keyed by part name.
	media map[string][]byte
}

func openContainer(template []byte) (*container, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("docx: open template container: %w", err)
	}

	c := &container{
		source: reader,
		names:  make(map[string]struct{}, len(reader.File)),
		media:  make(map[string][]byte),
	}
	for _, file := range reader.File {
		c.names[file.Name] = struct{}{}
	}

	if c.document, err = c.parsePart(documentPart); err != nil {
		return nil, err
	}
	if c.rels, err = c.parsePart(documentRelsPart); err != nil {
		return nil, err
	}
	if c.types, err = c.parsePart(contentTypesPart); err != nil {
		return nil, err
	}
	if c.body() == nil {
		return nil, fmt.Errorf("docx: template has no document body")
	}
	return c, nil
}

func (c *container) parsePart(name string) (*etree.Document, error) {
	for _, file := range c.source.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("docx: open part %s: %w", name, err)
		}
		defer rc.Close()
		doc := etree.NewDocument()
		if _, err := doc.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("docx: parse part %s: %w", name, err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("docx: template is missing part %s", name)
}

func (c *container) body() *etree.Element {
	root := c.document.Root()
	if root == nil {
		return nil
	}
	return root.SelectElement("w:body")
}

// blockText collects the visible text of a structural block (paragraph or
// table), NFC-normalized and lowercased for marker matching.
func blockText(el *etree.Element) string {
	var sb strings.Builder
	collectText(el, &sb)
	return foldText(sb.String())
}

func collectText(el *etree.Element, sb *strings.Builder) {
	if el.Space == "w" && el.Tag == "t" {
		sb.WriteString(el.Text())
		return
	}
	for _, child := range el.ChildElements() {
		collectText(child, sb)
	}
}

// foldText prepares text for matching: Vietnamese template text appears in
// both composed and decomposed Unicode forms depending on the authoring
// tool, so everything is NFC-normalized before comparison.
func foldText(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// nextRelationshipID returns the first unused rId in the document rels part.
func (c *container) nextRelationshipID() string {
	maxID := 0
	if root := c.rels.Root(); root != nil {
		for _, rel := range root.ChildElements() {
			id := rel.SelectAttrValue("Id", "")
			if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > maxID {
				maxID = n
			}
		}
	}
	return "rId" + strconv.Itoa(maxID+1)
}

// addImagePart registers a media part plus its relationship and returns the
// relationship id to embed.
func (c *container) addImagePart(baseName, extension string, data []byte) (string, error) {
	partName := fmt.Sprintf("word/media/%s.%s", baseName, extension)
	for i := 1; ; i++ {
		if _, taken := c.names[partName]; !taken {
			if _, taken := c.media[partName]; !taken {
				break
			}
		}
		partName = fmt.Sprintf("word/media/%s_%d.%s", baseName, i, extension)
	}

	relID := c.nextRelationshipID()
	root := c.rels.Root()
	if root == nil {
		return "", fmt.Errorf("docx: relationships part has no root")
	}
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", relID)
	rel.CreateAttr("Type", imageRelType)
	rel.CreateAttr("Target", strings.TrimPrefix(partName, "word/"))

	c.media[partName] = data
	c.ensureContentType(extension)
	return relID, nil
}

// ensureContentType adds a Default content-type mapping for the extension
// when the template does not already declare one.
func (c *container) ensureContentType(extension string) {
	root := c.types.Root()
	if root == nil {
		return
	}
	for _, child := range root.ChildElements() {
		if child.Tag == "Default" && strings.EqualFold(child.SelectAttrValue("Extension", ""), extension) {
			return
		}
	}
	def := root.CreateElement("Default")
	def.CreateAttr("Extension", extension)
	def.CreateAttr("ContentType", "image/"+extension)
}

// imageParagraph builds a centered paragraph holding one inline image run.
func imageParagraph(relID, name string, docPrID int, widthEMU, heightEMU int64) *etree.Element {
	para := etree.NewElement("w:p")
	props := para.CreateElement("w:pPr")
	jc := props.CreateElement("w:jc")
	jc.CreateAttr("w:val", "center")
	run := para.CreateElement("w:r")
	run.AddChild(inlineDrawing(relID, name, docPrID, widthEMU, heightEMU))
	return para
}

// imageRun builds a bare run holding one inline image, for insertion into an
// existing paragraph.
func imageRun(relID, name string, docPrID int, widthEMU, heightEMU int64) *etree.Element {
	run := etree.NewElement("w:r")
	run.AddChild(inlineDrawing(relID, name, docPrID, widthEMU, heightEMU))
	return run
}

func inlineDrawing(relID, name string, docPrID int, widthEMU, heightEMU int64) *etree.Element {
	cx := strconv.FormatInt(widthEMU, 10)
	cy := strconv.FormatInt(heightEMU, 10)
	id := strconv.Itoa(docPrID)

	drawing := etree.NewElement("w:drawing")
	inline := drawing.CreateElement("wp:inline")
	inline.CreateAttr("xmlns:wp", wpNS)
	for _, dist := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(dist, "0")
	}

	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", cx)
	extent.CreateAttr("cy", cy)

	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", id)
	docPr.CreateAttr("name", name)

	graphic := inline.CreateElement("a:graphic")
	graphic.CreateAttr("xmlns:a", drawingNS)
	graphicData := graphic.CreateElement("a:graphicData")
	graphicData.CreateAttr("uri", pictureNS)

	pic := graphicData.CreateElement("pic:pic")
	pic.CreateAttr("xmlns:pic", pictureNS)

	nvPicPr := pic.CreateElement("pic:nvPicPr")
	cNvPr := nvPicPr.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", id)
	cNvPr.CreateAttr("name", name)
	nvPicPr.CreateElement("pic:cNvPicPr")

	blipFill := pic.CreateElement("pic:blipFill")
	blip := blipFill.CreateElement("a:blip")
	blip.CreateAttr("xmlns:r", relNS)
	blip.CreateAttr("r:embed", relID)
	blipFill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("pic:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", cx)
	ext.CreateAttr("cy", cy)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	return drawing
}

// write serializes the container: untouched parts are copied raw from the
// template, edited parts are re-encoded, and new media parts are appended
// in sorted order with a fixed timestamp.
func (c *container) write() ([]byte, error) {
	edited := map[string]*etree.Document{
		documentPart:     c.document,
		documentRelsPart: c.rels,
		contentTypesPart: c.types,
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, file := range c.source.File {
		if doc, ok := edited[file.Name]; ok {
			data, err := doc.WriteToBytes()
			if err != nil {
				return nil, fmt.Errorf("docx: serialize %s: %w", file.Name, err)
			}
			if err := writeEntry(writer, file.Name, data); err != nil {
				return nil, err
			}
			continue
		}
		if err := copyEntryRaw(writer, file); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(c.media))
	for name := range c.media {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeEntry(writer, name, c.media[name]); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("docx: finalize container: %w", err)
	}
	return out.Bytes(), nil
}

func writeEntry(writer *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: zipEpoch}
	w, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("docx: create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("docx: write entry %s: %w", name, err)
	}
	return nil
}

func copyEntryRaw(writer *zip.Writer, file *zip.File) error {
	header := file.FileHeader
	w, err := writer.CreateRaw(&header)
	if err != nil {
		return fmt.Errorf("docx: copy entry %s: %w", file.Name, err)
	}
	r, err := file.OpenRaw()
	if err != nil {
		return fmt.Errorf("docx: open entry %s: %w", file.Name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("docx: copy entry %s: %w", file.Name, err)
	}
	return nil
}
