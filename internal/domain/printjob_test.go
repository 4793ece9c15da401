package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{name: "awaiting payment to queued", from: JobStatusAwaitingPayment, to: JobStatusQueued, want: true},
		{name: "awaiting payment only fails via override", from: JobStatusAwaitingPayment, to: JobStatusFailed, want: false},
		{name: "awaiting payment cannot skip to printing", from: JobStatusAwaitingPayment, to: JobStatusPrinting, want: false},
		{name: "queued to printing", from: JobStatusQueued, to: JobStatusPrinting, want: true},
		{name: "queued to held", from: JobStatusQueued, to: JobStatusWaitingForConfirm, want: true},
		{name: "queued cannot complete directly", from: JobStatusQueued, to: JobStatusCompleted, want: false},
		{name: "queued only fails via override", from: JobStatusQueued, to: JobStatusFailed, want: false},
		{name: "printing to completed", from: JobStatusPrinting, to: JobStatusCompleted, want: true},
		{name: "printing to failed", from: JobStatusPrinting, to: JobStatusFailed, want: true},
		{name: "printing cannot go back to queued", from: JobStatusPrinting, to: JobStatusQueued, want: false},
		{name: "held resumes to queued", from: JobStatusWaitingForConfirm, to: JobStatusQueued, want: true},
		{name: "held cannot start printing", from: JobStatusWaitingForConfirm, to: JobStatusPrinting, want: false},
		{name: "held only fails via override", from: JobStatusWaitingForConfirm, to: JobStatusFailed, want: false},
		{name: "completed is absorbing", from: JobStatusCompleted, to: JobStatusFailed, want: false},
		{name: "failed is absorbing", from: JobStatusFailed, to: JobStatusQueued, want: false},
		{name: "unknown status has no transitions", from: "shredded", to: JobStatusQueued, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%q, %q) = %t, want %t", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminalJobStatus(t *testing.T) {
	terminal := []string{JobStatusCompleted, JobStatusFailed}
	for _, status := range terminal {
		if !IsTerminalJobStatus(status) {
			t.Fatalf("expected %q to be terminal", status)
		}
	}
	live := []string{JobStatusAwaitingPayment, JobStatusQueued, JobStatusPrinting, JobStatusWaitingForConfirm}
	for _, status := range live {
		if IsTerminalJobStatus(status) {
			t.Fatalf("expected %q not to be terminal", status)
		}
	}
}

func TestDocumentTotalPages(t *testing.T) {
	tests := []struct {
		name      string
		pageCount int
		copies    int
		want      int
	}{
		{name: "single copy", pageCount: 7, copies: 1, want: 7},
		{name: "multiple copies multiply pages", pageCount: 7, copies: 3, want: 21},
		{name: "zero copies treated as one", pageCount: 5, copies: 0, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{PageCount: tt.pageCount, Copies: tt.copies}
			if got := doc.TotalPages(); got != tt.want {
				t.Fatalf("TotalPages() = %d, want %d", got, tt.want)
			}
		})
	}
}
