package submissions

import (
	"bytes"
	"fmt"
	"testing"
)

// onePagePDF builds a minimal single-page PDF with a correct xref table.
func onePagePDF() []byte {
	content := "BT /F1 12 Tf 72 712 Td (Invoice 1001) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestAccepts(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.PNG", "c.jpg", "d.jpeg", "e.jpe", "f.bmp", "g.tiff", "h.TIF"} {
		if !Accepts(name) {
			t.Fatalf("expected %s accepted", name)
		}
	}
	for _, name := range []string{"a.docx", "b.gif", "noext", "pdf"} {
		if Accepts(name) {
			t.Fatalf("expected %s rejected", name)
		}
	}
}

func TestAttachmentLabelAndType(t *testing.T) {
	a := Attachment{Name: "scan.jpe", Data: make([]byte, 1536)}
	if a.Label() != "scan.jpe (1.50 KB)" {
		t.Fatalf("unexpected label %q", a.Label())
	}
	if a.ContentType() != "image/jpeg" {
		t.Fatalf("unexpected content type %q", a.ContentType())
	}
}

func TestInspectImageUsesOCR(t *testing.T) {
	info := Inspect(Attachment{Name: "receipt.png", Data: []byte("png")})
	if info.Method != methodOCR || info.Pages != 0 || info.Warning != "" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Size != "0.00 KB" {
		t.Fatalf("unexpected size %q", info.Size)
	}
}

func TestInspectCountsPDFPages(t *testing.T) {
	info := Inspect(Attachment{Name: "invoice.pdf", Data: onePagePDF()})
	if info.Warning != "" {
		t.Fatalf("unexpected warning: %s", info.Warning)
	}
	if info.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", info.Pages)
	}
	if info.Type != mimePDF {
		t.Fatalf("unexpected type %q", info.Type)
	}
}

func TestInspectWarnsOnUnreadablePDF(t *testing.T) {
	info := Inspect(Attachment{Name: "broken.pdf", Data: []byte("not a pdf at all")})
	if info.Warning == "" {
		t.Fatal("expected warning for unreadable pdf")
	}
	if info.Method != methodOCR {
		t.Fatalf("expected ocr fallback, got %s", info.Method)
	}
	if empty := Inspect(Attachment{Name: "empty.pdf"}); empty.Warning == "" {
		t.Fatal("expected warning for empty pdf")
	}
}
