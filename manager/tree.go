package manager

import (
	"context"
	"sort"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// Descendants returns the live processes transitively spawned by root,
// in ascending pid order. Processes exiting while the table is built are
// skipped.
func Descendants(ctx context.Context, root int) ([]int, error) {
	parents, err := parentTable(ctx)
	if err != nil {
		return nil, err
	}
	return descendantsOf(parents, root), nil
}

// parentTable maps every visible pid to its parent pid
func parentTable(ctx context.Context) (map[int]int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}

	parents := make(map[int]int, len(procs))
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue // 进程可能已经退出
		}
		parents[int(p.Pid)] = int(ppid)
	}
	return parents, nil
}

// descendantsOf walks a pid -> ppid table breadth first from root
func descendantsOf(parents map[int]int, root int) []int {
	children := make(map[int][]int, len(parents))
	for pid, ppid := range parents {
		if pid == ppid {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}

	seen := map[int]bool{root: true}
	queue := append([]int(nil), children[root]...)
	var result []int

	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if seen[pid] {
			continue
		}
		seen[pid] = true
		result = append(result, pid)
		queue = append(queue, children[pid]...)
	}

	sort.Ints(result)
	return result
}
