package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/metrics"
	"github.com/Lllllllleong/vergabeflow/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectsReader(objects map[string]string) ObjectReader {
	return func(_ context.Context, _, object string, limit int64) ([]byte, error) {
		data, ok := objects[object]
		if !ok {
			return nil, errors.New("object not found")
		}
		if int64(len(data)) > limit {
			return nil, &gcp.ObjectTooLargeError{Object: object, Size: int64(len(data))}
		}
		return []byte(data), nil
	}
}

const zkText = "Zuschlagskriterien und Bewertungsmatrix. Die Gewichtung erfolgt nach Preis-Leistungs-Verhältnis."

func TestReferenceIngestClassifies(t *testing.T) {
	store := newMemStore()
	m := metrics.New()
	f := NewReferenceIngestWith(store, objectsReader(map[string]string{
		"uploads/zuschlag.pdf": zkText,
	}), newTestProcessor(), m)

	err := f.Process(t.Context(), GCSEvent{Bucket: "refs", Name: "uploads/zuschlag.pdf"})
	require.NoError(t, err)

	require.Len(t, store.references, 1)
	ref := store.references["ref-1"]
	assert.Equal(t, models.ProcessingStatusCompleted, ref.ProcessingStatus)
	assert.Equal(t, "zuschlag.pdf", ref.Filename)
	assert.Equal(t, string(docproc.CategoryZuschlagskriterien), ref.DocumentType)
	assert.Equal(t, "gs://refs/uploads/zuschlag.pdf", ref.Source)
	assert.Len(t, ref.FileHash, 64)
	assert.Equal(t, int64(len(zkText)), ref.FileSize)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsProcessed.WithLabelValues("zuschlagskriterien")))
}

func TestReferenceIngestSkipsDuplicates(t *testing.T) {
	store := newMemStore()
	f := NewReferenceIngestWith(store, objectsReader(map[string]string{
		"a.pdf": zkText,
		"b.pdf": zkText,
	}), newTestProcessor(), nil)

	require.NoError(t, f.Process(t.Context(), GCSEvent{Bucket: "refs", Name: "a.pdf"}))
	require.NoError(t, f.Process(t.Context(), GCSEvent{Bucket: "refs", Name: "b.pdf"}))

	assert.Len(t, store.references, 1)
}

func TestReferenceIngestRecordsFailures(t *testing.T) {
	tests := []struct {
		name  string
		event GCSEvent
		data  string
		kind  string
	}{
		{"not a pdf", GCSEvent{Name: "notes.txt"}, "Zuschlagskriterien", string(docproc.UnsupportedType)},
		{"explicit content type", GCSEvent{Name: "scan.pdf", ContentType: "image/png"}, "x", string(docproc.UnsupportedType)},
		{"blank document", GCSEvent{Name: "leer.pdf"}, "   ", string(docproc.EmptyDocument)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			m := metrics.New()
			tt.event.Bucket = "refs"
			f := NewReferenceIngestWith(store, objectsReader(map[string]string{tt.event.Name: tt.data}), newTestProcessor(), m)

			require.NoError(t, f.Process(t.Context(), tt.event))

			require.Len(t, store.references, 1)
			ref := store.references["ref-1"]
			assert.Equal(t, models.ProcessingStatusFailed, ref.ProcessingStatus)
			assert.NotEmpty(t, ref.ErrorDetails)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.FileErrors.WithLabelValues(tt.kind)))
		})
	}
}

func TestReferenceIngestTooLarge(t *testing.T) {
	tests := []struct {
		name      string
		eventSize string
		err       error
		want      string
	}{
		{"size from event", "20971520", gcp.ErrObjectTooLarge, "Datei zu groß: 20.00MB"},
		{"size from object", "", &gcp.ObjectTooLargeError{Bucket: "refs", Object: "gross.pdf", Size: 15 * 1024 * 1024}, "Datei zu groß: 15.00MB"},
		{"event size wins", "20971520", &gcp.ObjectTooLargeError{Bucket: "refs", Object: "gross.pdf", Size: 15 * 1024 * 1024}, "Datei zu groß: 20.00MB"},
		{"no size anywhere", "", &gcp.ObjectTooLargeError{Bucket: "refs", Object: "gross.pdf"}, "Datei zu groß"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			read := func(context.Context, string, string, int64) ([]byte, error) {
				return nil, tt.err
			}
			f := NewReferenceIngestWith(store, read, newTestProcessor(), nil)

			require.NoError(t, f.Process(t.Context(), GCSEvent{Bucket: "refs", Name: "gross.pdf", Size: tt.eventSize}))

			require.Len(t, store.references, 1)
			ref := store.references["ref-1"]
			assert.Equal(t, models.ProcessingStatusFailed, ref.ProcessingStatus)
			assert.Contains(t, ref.ErrorDetails, tt.want)
		})
	}
}

func TestReferenceIngestTooLargeFromReader(t *testing.T) {
	store := newMemStore()
	big := strings.Repeat("x", int(docproc.MaxFileSize)*3/2)
	f := NewReferenceIngestWith(store, objectsReader(map[string]string{"gross.pdf": big}), newTestProcessor(), nil)

	require.NoError(t, f.Process(t.Context(), GCSEvent{Bucket: "refs", Name: "gross.pdf"}))

	ref := store.references["ref-1"]
	assert.Equal(t, int64(len(big)), ref.FileSize)
	assert.Contains(t, ref.ErrorDetails, "Datei zu groß: 15.00MB")
}

func TestReferenceIngestReadError(t *testing.T) {
	store := newMemStore()
	f := NewReferenceIngestWith(store, objectsReader(nil), newTestProcessor(), nil)

	assert.Error(t, f.Process(t.Context(), GCSEvent{Bucket: "refs", Name: "missing.pdf"}))
	assert.Empty(t, store.references)
}
