package tracing

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/logger"
)

func TestSpansNestThroughContext(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-7")
	ctx, root := Start(ctx, "pipeline.crawl")
	if root.TraceID != "req-7" {
		t.Errorf("root trace id = %q, want the request id", root.TraceID)
	}

	childCtx, crawl := Start(ctx, "crawl")
	_, fetch := Start(childCtx, "fetch")
	fetch.End()
	crawl.End()
	_, index := Start(ctx, "index")
	index.SetAttr("documents", 3)
	index.End()
	root.End()

	children := root.Children()
	if len(children) != 2 || children[0].Name != "crawl" || children[1].Name != "index" {
		t.Fatalf("unexpected children %+v", children)
	}
	if fetch.TraceID != "req-7" {
		t.Errorf("grandchild trace id = %q", fetch.TraceID)
	}
	if got := crawl.Children(); len(got) != 1 || got[0] != fetch {
		t.Errorf("expected fetch under crawl, got %+v", got)
	}
	if FromContext(childCtx) != crawl {
		t.Error("FromContext should return the innermost span")
	}
}

func TestRootWithoutRequestIDGetsTraceID(t *testing.T) {
	_, span := Start(context.Background(), "rebuild")
	if span.TraceID == "" {
		t.Error("expected a generated trace id")
	}
	span.End()
	d := span.Duration
	span.End()
	if span.Duration != d {
		t.Error("second End must not change the duration")
	}
}

func TestAttrsAfterEndAreDropped(t *testing.T) {
	_, span := Start(context.Background(), "rocchio")
	span.SetAttr("terms", 2)
	span.SetAttr("terms", 3)
	span.End()
	span.SetAttr("late", true)

	if v, ok := span.Attr("terms"); !ok || v != 3 {
		t.Errorf("terms = %v, %v, want the last value 3", v, ok)
	}
	if _, ok := span.Attr("late"); ok {
		t.Error("attribute set after End was kept")
	}
}
