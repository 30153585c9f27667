package runner

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// jobFor builds a self-contained input: one target sends to one recipient
// who keeps the tokens, which is enough to admit a wallet and, with the
// second send, produce a dispersal risk flag.
func jobFor(n int) models.AnalysisInput {
	target := "0xtarget" + strconv.Itoa(n)
	r1 := "0xkeeper" + strconv.Itoa(n)
	r2 := "0xother" + strconv.Itoa(n)
	return models.AnalysisInput{
		TargetAddress: target,
		Transfers: []models.TransferEvent{
			{Hash: "0x1", From: target, To: r1, Value: "100", TimeStamp: "1700000000", TokenDecimals: "0"},
			{Hash: "0x2", From: target, To: r2, Value: "100", TimeStamp: "1700000060", TokenDecimals: "0"},
		},
		Balances: map[string]float64{target: 0, r1: 100, r2: 100},
	}
}

func collectReports(t *testing.T, r *BatchRunner, want int, reports <-chan models.HoldingsReport) []models.HoldingsReport {
	t.Helper()

	got := make([]models.HoldingsReport, 0, want)
	deadline := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case rep := <-reports:
			got = append(got, rep)
		case <-deadline:
			t.Fatalf("Timed out waiting for reports: got %d of %d", len(got), want)
		}
	}

	// The callback fires before the completion counter is final for the
	// last job; poll briefly for the runner to settle.
	for i := 0; i < 100; i++ {
		if !r.GetProgress().IsRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return got
}

func TestBatchRunsEveryJob(t *testing.T) {
	reports := make(chan models.HoldingsReport, 16)
	r := NewBatchRunner(2, func(rep models.HoldingsReport) { reports <- rep })

	jobs := []models.AnalysisInput{jobFor(1), jobFor(2), jobFor(3)}
	if !r.Run(context.Background(), jobs) {
		t.Fatal("Expected batch to start")
	}

	got := collectReports(t, r, 3, reports)

	targets := make(map[string]bool)
	for _, rep := range got {
		targets[rep.TargetAddress] = true
	}
	if len(targets) != 3 {
		t.Errorf("Expected one report per distinct target. Got: %d", len(targets))
	}

	progress := r.GetProgress()
	if progress.IsRunning {
		t.Error("Expected runner to be idle after completion")
	}
	if progress.Completed != 3 || progress.TotalJobs != 3 {
		t.Errorf("Expected 3/3 completed. Got: %d/%d", progress.Completed, progress.TotalJobs)
	}
	// Every job is a 2-wallet dispersal, so every report carries risk flags.
	if progress.TotalFlagged != 3 {
		t.Errorf("Expected all 3 reports flagged. Got: %d", progress.TotalFlagged)
	}
}

func TestBatchRejectsConcurrentRun(t *testing.T) {
	var mu sync.Mutex
	started := make(chan struct{})
	release := make(chan struct{})
	var count int

	r := NewBatchRunner(1, func(models.HoldingsReport) {
		mu.Lock()
		count++
		first := count == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
	})

	if !r.Run(context.Background(), []models.AnalysisInput{jobFor(1), jobFor(2)}) {
		t.Fatal("Expected first batch to start")
	}
	<-started

	if r.Run(context.Background(), []models.AnalysisInput{jobFor(3)}) {
		t.Error("Expected second batch to be rejected while first is running")
	}
	close(release)

	for i := 0; i < 500; i++ {
		if !r.GetProgress().IsRunning {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Runner never finished")
}

func TestBatchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reports := make(chan models.HoldingsReport, 64)
	r := NewBatchRunner(1, func(rep models.HoldingsReport) {
		reports <- rep
		cancel() // Cancel after the first report lands.
	})

	jobs := make([]models.AnalysisInput, 50)
	for i := range jobs {
		jobs[i] = jobFor(i)
	}
	if !r.Run(ctx, jobs) {
		t.Fatal("Expected batch to start")
	}

	for i := 0; i < 500; i++ {
		if !r.GetProgress().IsRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	progress := r.GetProgress()
	if progress.IsRunning {
		t.Fatal("Runner never stopped after cancellation")
	}
	if progress.Completed >= int64(len(jobs)) {
		t.Errorf("Expected cancellation to abandon remaining jobs. Completed: %d", progress.Completed)
	}
}
