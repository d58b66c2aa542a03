// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papers/internal/container"
	"github.com/pdiddy/papers/internal/datalab"
	"github.com/pdiddy/papers/pkg/types"
)

// buildPDF assembles a minimal PDF with one Helvetica text line per page.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	n := len(pages)
	// Objects: 1 catalog, 2 pages, 3 font, then (page, content) pairs.
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	kids := ""
	for i, text := range pages {
		pageObj := 4 + 2*i
		kids += fmt.Sprintf("%d 0 R ", pageObj)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", pageObj+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestPDFText_Extract(t *testing.T) {
	data := buildPDF(t, "Attention", "Transformers")

	out, err := PDFText{}.Extract(context.Background(), data, "W1.pdf", types.ModeAccurate)
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "Attention")
	assert.Contains(t, out.Markdown, "Transformers")
	assert.Empty(t, out.Mode, "local backends ignore the mode")

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(out.JSON), &doc))
	assert.Equal(t, "pdftext", doc.Backend)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, 2, doc.Pages[1].Number)
}

func TestPDFText_NotAPDF(t *testing.T) {
	_, err := PDFText{}.Extract(context.Background(), []byte("<html>paywall</html>"), "x.pdf", "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPDFText_NoText(t *testing.T) {
	data := buildPDF(t, "")
	_, err := PDFText{}.Extract(context.Background(), data, "blank.pdf", "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

type fakeRuntime struct {
	imageErr error
	output   string
	runErr   error
	stdin    []byte
}

func (f *fakeRuntime) Name() string { return "docker" }

func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }

func (f *fakeRuntime) Run(_ context.Context, _ string, stdin io.Reader, stdout io.Writer) error {
	f.stdin, _ = io.ReadAll(stdin)
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

var _ container.Runtime = (*fakeRuntime)(nil)

func TestMarkitdown(t *testing.T) {
	tests := []struct {
		name      string
		rt        *fakeRuntime
		wantPages int
		wantErr   bool
	}{
		{
			name:      "pages split on form feed",
			rt:        &fakeRuntime{output: "# Title\n\nIntro\f\fResults\n"},
			wantPages: 2,
		},
		{
			name:    "empty output",
			rt:      &fakeRuntime{output: "  \n"},
			wantErr: true,
		},
		{
			name:    "container failure",
			rt:      &fakeRuntime{runErr: errors.New("exit status 1")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMarkitdown(context.Background(), tt.rt)
			require.NoError(t, err)
			out, err := m.Extract(context.Background(), []byte("%PDF-1.7"), "K1.pdf", "")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExtractionFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.7", string(tt.rt.stdin))
			var doc Document
			require.NoError(t, json.Unmarshal([]byte(out.JSON), &doc))
			assert.Len(t, doc.Pages, tt.wantPages)
			assert.Equal(t, "# Title\n\nIntro\n\nResults", out.Markdown)
		})
	}
}

func TestNewMarkitdown_MissingImage(t *testing.T) {
	_, err := NewMarkitdown(context.Background(), &fakeRuntime{imageErr: errors.New("no such image")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markitdown image not available in docker")
}

type fakeMarker struct {
	res  *datalab.Result
	err  error
	mode types.ProcessingMode
}

func (f *fakeMarker) Convert(_ context.Context, _ []byte, _ string, mode types.ProcessingMode) (*datalab.Result, error) {
	f.mode = mode
	return f.res, f.err
}

func TestDatalab(t *testing.T) {
	fm := &fakeMarker{res: &datalab.Result{Markdown: "# Fast", JSON: json.RawMessage(`{"children":[]}`)}}
	d := &Datalab{client: fm}

	out, err := d.Extract(context.Background(), []byte("x"), "K1.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, types.ModeBalanced, fm.mode)
	assert.Equal(t, types.ModeBalanced, out.Mode)
	assert.JSONEq(t, `{"children":[]}`, out.JSON)

	fm.res = &datalab.Result{Markdown: "# Fast"}
	out, err = d.Extract(context.Background(), []byte("x"), "K1.pdf", types.ModeFast)
	require.NoError(t, err)
	assert.Equal(t, "{}", out.JSON)

	fm.err = fmt.Errorf("wrapped: %w", datalab.ErrProcessing)
	_, err = d.Extract(context.Background(), []byte("x"), "K1.pdf", types.ModeFast)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	fm.err = context.Canceled
	_, err = d.Extract(context.Background(), []byte("x"), "K1.pdf", types.ModeFast)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExtractionFailed)
}

type recordingExtractor struct {
	name  string
	calls int
}

func (r *recordingExtractor) Extract(context.Context, []byte, string, types.ProcessingMode) (*Output, error) {
	r.calls++
	return &Output{Markdown: r.name}, nil
}

func TestRouter(t *testing.T) {
	local := &recordingExtractor{name: "local"}
	adv := &recordingExtractor{name: "advanced"}

	r := &Router{Local: local, Advanced: adv}
	out, err := r.Extract(context.Background(), nil, "k.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "local", out.Markdown)

	out, err = r.Extract(context.Background(), nil, "k.pdf", types.ModeAccurate)
	require.NoError(t, err)
	assert.Equal(t, "advanced", out.Markdown)

	noAdv := &Router{Local: local}
	out, err = noAdv.Extract(context.Background(), nil, "k.pdf", types.ModeAccurate)
	require.NoError(t, err)
	assert.Equal(t, "local", out.Markdown)
	assert.Equal(t, 2, local.calls)
}

func TestNewLocal(t *testing.T) {
	ext, err := NewLocal(context.Background(), types.ExtractionConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, PDFText{}, ext)

	rt := &fakeRuntime{}
	ext, err = NewLocal(context.Background(), types.ExtractionConfig{Backend: types.BackendMarkitdown},
		func(context.Context) (container.Runtime, error) { return rt, nil })
	require.NoError(t, err)
	assert.IsType(t, &Markitdown{}, ext)

	_, err = NewLocal(context.Background(), types.ExtractionConfig{Backend: "ocr"}, nil)
	assert.Error(t, err)
}
