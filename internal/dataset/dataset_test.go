package dataset

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/hub/hubtest"
	"github.com/idlab-discover/emotune-cli/internal/labels"
)

func TestSample(t *testing.T) {
	d := Sample()
	for _, name := range DefaultSplits {
		s, err := d.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) == 0 {
			t.Fatalf("split %s is empty", name)
		}
		for l, n := range s.Counts() {
			if n == 0 {
				t.Errorf("split %s has no %s examples", name, labels.Label(l))
			}
		}
	}
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestFileLoader(t *testing.T) {
	d, err := FileLoader{Dir: "testdata"}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := d.Names(); !reflect.DeepEqual(got, []string{Train, Validation}) {
		t.Fatalf("splits = %v", got)
	}
	if len(d[Train]) != 4 {
		t.Fatalf("train rows = %d, want 4", len(d[Train]))
	}
	val := d[Validation]
	want := Split{{Text: "i feel happy, truly", Label: labels.Joy}, {Text: "i feel scared", Label: labels.Fear}}
	if !reflect.DeepEqual(val, want) {
		t.Fatalf("validation = %+v", val)
	}

	t.Run("explicit missing split", func(t *testing.T) {
		_, err := FileLoader{Dir: "testdata"}.Load(context.Background(), Test)
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("err = %v, want ErrNotExist", err)
		}
	})

	t.Run("out of range label", func(t *testing.T) {
		_, err := FileLoader{Dir: "testdata/bad"}.Load(context.Background())
		if err == nil || !strings.Contains(err.Error(), "row 1") {
			t.Fatalf("err = %v, want error naming row 1", err)
		}
	})
}

func TestReadCSV_RequiresColumns(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("sentence,emotion\nhi,1\n")); err == nil {
		t.Fatal("expected header error")
	}
}

func TestHubLoader(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()
	for i := 0; i < 7; i++ {
		srv.AddDatasetRows("emotion", Train, map[string]any{"text": "row", "label": i % labels.NumLabels})
	}
	srv.AddDatasetRows("emotion", Validation, map[string]any{"text": "v", "label": 2})

	c := hub.NewClient(5*time.Second, hubtest.Token)
	c.DatasetsServerURL = srv.URL

	l := NewHubLoader(c)
	l.PageSize = 3

	d, err := l.Load(context.Background(), Train, Validation)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d[Train]) != 7 || len(d[Validation]) != 1 {
		t.Fatalf("rows train=%d validation=%d", len(d[Train]), len(d[Validation]))
	}
	if d[Train][6].Label != labels.Sadness {
		t.Fatalf("row 6 label = %v", d[Train][6].Label)
	}

	t.Run("limit", func(t *testing.T) {
		l.Limit = 4
		defer func() { l.Limit = 0 }()
		d, err := l.Load(context.Background(), Train)
		if err != nil {
			t.Fatal(err)
		}
		if len(d[Train]) != 4 {
			t.Fatalf("rows = %d, want 4", len(d[Train]))
		}
	})

	t.Run("missing split", func(t *testing.T) {
		_, err := l.Load(context.Background(), Test)
		if !hub.IsNotFound(err) {
			t.Fatalf("err = %v, want 404", err)
		}
	})

	t.Run("bad label", func(t *testing.T) {
		srv.AddDatasetRows("emotion", "broken", map[string]any{"text": "x", "label": 11})
		if _, err := l.Load(context.Background(), "broken"); err == nil {
			t.Fatal("expected label error")
		}
	})
}

func TestShuffleAndTake(t *testing.T) {
	s := Sample()[Train]
	a := s.Shuffle(42)
	b := s.Shuffle(42)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Shuffle is not deterministic")
	}
	if reflect.DeepEqual(a, s) {
		t.Fatal("Shuffle returned the input order")
	}
	if len(s.Take(5)) != 5 || len(s.Take(0)) != len(s) {
		t.Fatal("Take returned wrong sizes")
	}
}
