package model

import (
	"errors"
	"testing"

	"github.com/bartdag/linkvalidator/internal/urlutil"
)

func canonical(t *testing.T, raw string) urlutil.CanonicalURL {
	t.Helper()
	u, err := urlutil.ParseStart(raw)
	if err != nil {
		t.Fatalf("ParseStart(%q) returned error: %v", raw, err)
	}
	return u
}

func TestGetOrCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates pending page", func(t *testing.T) {
		t.Parallel()

		site := NewSiteModel(nil)
		u := canonical(t, "http://h/a")

		page, wasNew := site.GetOrCreate(u, 2, nil)
		if !wasNew {
			t.Error("expected wasNew for first insertion")
		}
		if page.Status.Kind != StatusPending {
			t.Errorf("expected Pending, got %v", page.Status.Kind)
		}
		if page.Depth != 2 {
			t.Errorf("expected depth 2, got %d", page.Depth)
		}
	})

	t.Run("keeps minimum depth", func(t *testing.T) {
		t.Parallel()

		site := NewSiteModel(nil)
		u := canonical(t, "http://h/a")

		site.GetOrCreate(u, 3, nil)
		page, wasNew := site.GetOrCreate(u, 1, nil)
		if wasNew {
			t.Error("second insertion must not be new")
		}
		if page.Depth != 1 {
			t.Errorf("expected min depth 1, got %d", page.Depth)
		}

		// A deeper rediscovery does not raise the depth back.
		page, _ = site.GetOrCreate(u, 5, nil)
		if page.Depth != 1 {
			t.Errorf("expected depth to stay 1, got %d", page.Depth)
		}
	})

	t.Run("appends incoming refs", func(t *testing.T) {
		t.Parallel()

		site := NewSiteModel(nil)
		target := canonical(t, "http://h/shared")
		src1 := canonical(t, "http://h/a")
		src2 := canonical(t, "http://h/b")

		site.GetOrCreate(target, 1, &PageRef{URL: target, SourceURL: src1, Tag: "a", Depth: 1})
		page, _ := site.GetOrCreate(target, 1, &PageRef{URL: target, SourceURL: src2, Tag: "a", Depth: 1})

		if len(page.IncomingRefs) != 2 {
			t.Fatalf("expected 2 incoming refs, got %d", len(page.IncomingRefs))
		}
		if page.IncomingRefs[0].SourceURL != src1 || page.IncomingRefs[1].SourceURL != src2 {
			t.Error("incoming refs out of discovery order")
		}
	})
}

func TestSetStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    []FetchStatus
		wantErr bool
	}{
		{"pending to inflight to ok", []FetchStatus{InFlight(), OK(200)}, false},
		{"pending to skipped", []FetchStatus{SkippedByPolicy(urlutil.SkipOutsideScope)}, false},
		{"inflight to http error", []FetchStatus{InFlight(), HTTPError(404)}, false},
		{"inflight to timeout", []FetchStatus{InFlight(), Timeout()}, false},
		{"inflight to redirect skip", []FetchStatus{InFlight(), SkippedByPolicy(urlutil.SkipRedirectedOutOfScope)}, false},
		{"pending straight to ok", []FetchStatus{OK(200)}, true},
		{"terminal is final", []FetchStatus{InFlight(), OK(200), HTTPError(500)}, true},
		{"invalid url never via set", []FetchStatus{InFlight(), InvalidURL("x")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			site := NewSiteModel(nil)
			u := canonical(t, "http://h/a")
			site.GetOrCreate(u, 0, nil)

			var err error
			for _, status := range tt.path {
				err = site.SetStatus(u, status, nil)
				if err != nil {
					break
				}
			}

			if tt.wantErr && err == nil {
				t.Error("expected transition error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrBadTransition) {
				t.Errorf("expected ErrBadTransition, got %v", err)
			}
		})
	}
}

func TestRecordRefsOnce(t *testing.T) {
	t.Parallel()

	site := NewSiteModel(nil)
	u := canonical(t, "http://h/")
	site.GetOrCreate(u, 0, nil)

	refs := []PageRef{
		{URL: canonical(t, "http://h/a"), SourceURL: u, Tag: "a", Attr: "href", Depth: 1},
		{URL: canonical(t, "http://h/b"), SourceURL: u, Tag: "img", Attr: "src", Depth: 1},
	}

	if err := site.RecordRefs(u, refs); err != nil {
		t.Fatalf("RecordRefs returned error: %v", err)
	}
	if err := site.RecordRefs(u, refs); err == nil {
		t.Error("expected error on second RecordRefs")
	}

	page := site.Get(u)
	if len(page.OutgoingRefs) != 2 {
		t.Fatalf("expected 2 outgoing refs, got %d", len(page.OutgoingRefs))
	}
	if page.OutgoingRefs[0].Tag != "a" || page.OutgoingRefs[1].Tag != "img" {
		t.Error("outgoing refs lost document order")
	}
}

func TestErrorCount(t *testing.T) {
	t.Parallel()

	site := NewSiteModel(nil)

	ok := canonical(t, "http://h/")
	site.GetOrCreate(ok, 0, nil)
	site.SetStatus(ok, InFlight(), nil)
	site.SetStatus(ok, OK(200), nil)

	missing := canonical(t, "http://h/missing")
	site.GetOrCreate(missing, 1, nil)
	site.SetStatus(missing, InFlight(), nil)
	site.SetStatus(missing, HTTPError(404), nil)

	skipped := canonical(t, "http://other/")
	site.GetOrCreate(skipped, 1, nil)
	site.SetStatus(skipped, SkippedByPolicy(urlutil.SkipOutsideScope), nil)

	site.RecordInvalid("http://[broken", "parse error", nil)

	if got := site.ErrorCount(); got != 2 {
		t.Errorf("expected 2 errors (404 and invalid), got %d", got)
	}
	if got := site.Len(); got != 4 {
		t.Errorf("expected 4 pages, got %d", got)
	}
}

func TestSnapshotSorted(t *testing.T) {
	t.Parallel()

	site := NewSiteModel(nil)
	for _, raw := range []string{"http://h/c", "http://h/a", "http://h/b"} {
		site.GetOrCreate(canonical(t, raw), 0, nil)
	}

	pages := site.Snapshot()
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for i, want := range []string{"http://h/a", "http://h/b", "http://h/c"} {
		if pages[i].URL.String() != want {
			t.Errorf("snapshot[%d] = %s, want %s", i, pages[i].URL, want)
		}
	}
}
