package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// procChild is one worker process with its pipe ends.
type procChild struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder
}

// runProcess executes the crawl with n worker processes. The master keeps
// sole ownership of the site model; children fetch and parse, and their
// outcomes flow back over stdout pipes into the shared event loop. An IPC
// failure is fatal for the whole run.
func (c *Crawler) runProcess(ctx context.Context, n int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own binary for worker processes: %w", err)
	}

	wc := wireConfigFrom(c.cfg, c.policy)

	children := make([]*procChild, 0, n)
	defer func() {
		for _, child := range children {
			_ = child.stdin.Close()  //nolint:errcheck // Best effort shutdown
			_ = child.cmd.Wait()     //nolint:errcheck // Best effort shutdown
		}
	}()

	for i := 0; i < n; i++ {
		child, err := startWorkerProcess(ctx, exe, wc)
		if err != nil {
			return fmt.Errorf("start worker process: %w", err)
		}
		children = append(children, child)
	}

	work := make(chan WorkItem)
	results := make(chan itemOutcome)

	// One feeder per child: items go down the stdin pipe and the child
	// answers in order, one response per request, so a plain
	// write-then-read loop keeps each child at exactly one item at a time.
	var wg sync.WaitGroup
	for _, child := range children {
		wg.Add(1)
		go func(child *procChild) {
			defer wg.Done()
			for item := range work {
				out, err := child.exchange(item)
				if err != nil {
					results <- itemOutcome{item: item, fatal: fmt.Errorf("worker ipc: %w", err)}
					continue
				}
				results <- out
			}
		}(child)
	}

	loopErr := c.eventLoop(work, results)

	close(work)
	wg.Wait()
	return loopErr
}

// exchange sends one item and reads its outcome.
func (pc *procChild) exchange(item WorkItem) (itemOutcome, error) {
	req := wireRequest{
		URL:       item.URL.String(),
		Depth:     item.Depth,
		Admission: int(item.Admission),
		Tag:       item.Tag,
		Site:      item.Site,
	}
	if err := pc.enc.Encode(req); err != nil {
		return itemOutcome{}, err
	}

	var resp wireResponse
	if err := pc.dec.Decode(&resp); err != nil {
		return itemOutcome{}, err
	}
	return wireToOutcome(item, resp), nil
}

// startWorkerProcess launches one child running the hidden worker
// subcommand and hands it the wire configuration as the first message.
func startWorkerProcess(ctx context.Context, exe string, wc wireConfig) (*procChild, error) {
	cmd := exec.CommandContext(ctx, exe, WorkerCommand)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	child := &procChild{
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		dec:   json.NewDecoder(stdout),
	}
	if err := child.enc.Encode(wc); err != nil {
		_ = stdin.Close()   //nolint:errcheck // Best effort cleanup
		_ = cmd.Process.Kill() //nolint:errcheck // Best effort cleanup
		return nil, err
	}
	return child, nil
}
