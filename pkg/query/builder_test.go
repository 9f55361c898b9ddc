package query_test

import (
	"testing"

	"github.com/ledgergate/ledgergate/pkg/query"
)

func baseProjection() *query.ProjectionMap {
	return query.
		NewProjectionMap("public", "documents", "d").
		Project("id", "ID").
		Project("filename", "Filename")
}

func joinedProjection() *query.ProjectionMap {
	return baseProjection().
		Join("public", "pipeline_states", "p", "LEFT JOIN", "d.id = p.document_id").
		Project("stage", "Stage")
}

func TestProjectionFrom(t *testing.T) {
	t.Run("base table only", func(t *testing.T) {
		got := baseProjection().From()
		want := "public.documents d"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("with join", func(t *testing.T) {
		got := joinedProjection().From()
		want := "public.documents d LEFT JOIN public.pipeline_states p ON d.id = p.document_id"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestProjectQualifiesJoinedColumns(t *testing.T) {
	p := joinedProjection()

	if got := p.Column("Filename"); got != "d.filename" {
		t.Errorf("base column: got %q, want %q", got, "d.filename")
	}
	if got := p.Column("Stage"); got != "p.stage" {
		t.Errorf("joined column: got %q, want %q", got, "p.stage")
	}
	if got := p.Columns(); got != "d.id, d.filename, p.stage" {
		t.Errorf("column list: got %q", got)
	}
}

func TestBuildWithJoin(t *testing.T) {
	stage := "extracting"
	sql, args := query.NewBuilder(joinedProjection()).
		WhereEquals("Stage", &stage).
		Build()

	want := "SELECT d.id, d.filename, p.stage " +
		"FROM public.documents d LEFT JOIN public.pipeline_states p ON d.id = p.document_id " +
		"WHERE p.stage = $1"
	if sql != want {
		t.Errorf("sql:\ngot  %q\nwant %q", sql, want)
	}
	if len(args) != 1 || args[0] != &stage {
		t.Errorf("args: got %v", args)
	}
}

func TestBuildPageNumbersParams(t *testing.T) {
	name := "report"
	kind := "invoice"
	sql, args := query.NewBuilder(baseProjection(), query.SortField{Field: "Filename"}).
		WhereContains("Filename", &name).
		WhereEquals("ID", &kind).
		BuildPage(2, 10)

	want := "SELECT d.id, d.filename FROM public.documents d " +
		"WHERE d.filename ILIKE $1 AND d.id = $2 " +
		"ORDER BY d.filename ASC LIMIT 10 OFFSET 10"
	if sql != want {
		t.Errorf("sql:\ngot  %q\nwant %q", sql, want)
	}
	if len(args) != 2 {
		t.Fatalf("args: got %d, want 2", len(args))
	}
	if args[0] != "%report%" {
		t.Errorf("first arg: got %v", args[0])
	}
}

func TestBuildCountIncludesJoin(t *testing.T) {
	sql, _ := query.NewBuilder(joinedProjection()).BuildCount()

	want := "SELECT COUNT(*) " +
		"FROM public.documents d LEFT JOIN public.pipeline_states p ON d.id = p.document_id"
	if sql != want {
		t.Errorf("sql:\ngot  %q\nwant %q", sql, want)
	}
}
