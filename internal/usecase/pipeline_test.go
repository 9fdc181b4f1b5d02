package usecase

import (
	"context"
	"testing"
)

func TestComposeRunsStagesInOrder(t *testing.T) {
	var order []string

	view := Compose(
		"Test",
		func(ctx context.Context, params PipelineParams) ([]string, error) {
			order = append(order, "skeleton")
			return []string{"a", "b"}, nil
		},
		func(ctx context.Context, params PipelineParams, skel []string) (int, error) {
			order = append(order, "hydration")
			return len(skel), nil
		},
		func(params PipelineParams, skel []string, hyd int) []string {
			order = append(order, "rules")
			return skel[:1]
		},
		func(params PipelineParams, skel []string, hyd int) string {
			order = append(order, "presentation")
			if len(skel) != 1 {
				t.Fatalf("presentation must see the rules output")
			}
			return skel[0]
		},
	)

	out, err := view(context.Background(), PipelineParams{})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if out != "a" {
		t.Fatalf("expected a got %q", out)
	}

	want := []string{"skeleton", "hydration", "rules", "presentation"}
	if len(order) != len(want) {
		t.Fatalf("expected %v got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v got %v", want, order)
		}
	}
}

func TestComposeNilRulesPassesThrough(t *testing.T) {
	view := Compose(
		"Test",
		func(ctx context.Context, params PipelineParams) (int, error) { return 7, nil },
		func(ctx context.Context, params PipelineParams, skel int) (int, error) { return skel * 2, nil },
		nil,
		func(params PipelineParams, skel, hyd int) int { return skel + hyd },
	)

	out, err := view(context.Background(), PipelineParams{})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if out != 21 {
		t.Fatalf("expected 21 got %d", out)
	}
}
