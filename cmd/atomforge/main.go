// Command atomforge is a multiprocess smoke test for the shared-memory
// primitives: it maps one segment from several worker processes, hammers a
// shared atomic counter and a mutex-protected plain cell, and checks that
// no update was lost.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"unsafe"

	"github.com/CreditWorthy/atomforge"
)

var exitFunc = os.Exit
var stderr io.Writer = os.Stderr

func main() {
	procs := flag.Int("procs", 4, "number of extra worker processes to spawn")
	adds := flag.Int("adds", 100000, "atomic increments per worker")
	locked := flag.Int("locked", 1000, "mutex-protected increments per worker")
	segment := flag.String("segment", "", "segment file path (default: a temp file)")
	worker := flag.Bool("worker", false, "run as a spawned worker (internal)")
	flag.Parse()

	if *worker {
		if err := runWorker(*segment, *adds, *locked); err != nil {
			fmt.Fprintf(stderr, "atomforge: worker: %v\n", err)
			exitFunc(1)
		}
		return
	}

	if err := run(*procs, *adds, *locked, *segment); err != nil {
		fmt.Fprintf(stderr, "atomforge: %v\n", err)
		exitFunc(1)
		return
	}
}

// layout carved out of the segment, in Place order. Workers repeat the same
// placements on their side of the mapping.
type layout struct {
	counter *atomforge.Atomic[uint64]
	mu      *atomforge.Mutex
	cell    atomforge.Region
}

func carve(seg *atomforge.Segment) (*layout, error) {
	counterRegion, err := seg.Place(atomforge.SizeOf[uint64](), atomforge.AlignOf[uint64]())
	if err != nil {
		return nil, err
	}
	counter, err := atomforge.Bind[uint64](counterRegion)
	if err != nil {
		return nil, err
	}

	muRegion, err := seg.Place(atomforge.MutexSize, atomforge.MutexAlign)
	if err != nil {
		return nil, err
	}
	var mu *atomforge.Mutex
	if atomforge.MutexSupported() {
		if seg.Created() {
			mu, err = atomforge.InitMutex(muRegion)
		} else {
			mu, err = atomforge.BindMutex(muRegion)
		}
		if err != nil {
			return nil, err
		}
	}

	cell, err := seg.Place(8, 8)
	if err != nil {
		return nil, err
	}

	return &layout{counter: counter, mu: mu, cell: cell}, nil
}

// hammer performs one worker's share of the load: adds atomic increments on
// the counter, locked non-atomic increments on the cell. The cell update is
// a deliberate read-modify-write race that only the mutex makes safe.
func hammer(l *layout, adds, locked int) error {
	for i := 0; i < adds; i++ {
		l.counter.WrappingAdd(1)
	}

	if l.mu == nil {
		return nil
	}
	for i := 0; i < locked; i++ {
		err := l.mu.Do(func() error {
			p := (*uint64)(unsafe.Pointer(&l.cell.Bytes()[0]))
			*p++
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func runWorker(path string, adds, locked int) error {
	if path == "" {
		return fmt.Errorf("worker needs -segment")
	}
	seg, err := atomforge.OpenSegment(path)
	if err != nil {
		return err
	}
	defer seg.Close()

	l, err := carve(seg)
	if err != nil {
		return err
	}
	return hammer(l, adds, locked)
}

func run(procs, adds, locked int, path string) error {
	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("atomforge-%d.seg", os.Getpid()))
	}

	seg, err := atomforge.CreateSegment(path, 4096)
	if err != nil {
		return err
	}
	defer func() {
		seg.Close()
		atomforge.RemoveSegment(path)
	}()

	l, err := carve(seg)
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, procs)
	for i := 0; i < procs; i++ {
		cmd := exec.Command(exe,
			"-worker",
			"-segment", path,
			"-adds", strconv.Itoa(adds),
			"-locked", strconv.Itoa(locked),
		)
		cmd.Stderr = os.Stderr
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- cmd.Run()
		}()
	}

	// the parent is worker zero
	localErr := hammer(l, adds, locked)

	wg.Wait()
	close(errs)
	if localErr != nil {
		return localErr
	}
	for err := range errs {
		if err != nil {
			return fmt.Errorf("worker: %w", err)
		}
	}

	workers := procs + 1
	wantAdds := uint64(workers * adds)
	if got := l.counter.Get(); got != wantAdds {
		return fmt.Errorf("atomic counter = %d, want %d", got, wantAdds)
	}
	fmt.Printf("atomforge: %d workers x %d adds -> counter %d (ok)\n", workers, adds, l.counter.Get())

	if l.mu != nil {
		wantLocked := uint64(workers * locked)
		got := *(*uint64)(unsafe.Pointer(&l.cell.Bytes()[0]))
		if got != wantLocked {
			return fmt.Errorf("locked cell = %d, want %d", got, wantLocked)
		}
		fmt.Printf("atomforge: %d workers x %d locked increments -> cell %d (ok)\n", workers, locked, got)
	} else {
		fmt.Println("atomforge: mutex not supported on this platform, locked phase skipped")
	}
	return nil
}
