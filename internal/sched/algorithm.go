package sched

import (
	"fmt"
	"strings"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Algorithm selects which policy picks the next task.
type Algorithm int

const (
	AlgorithmPriority Algorithm = iota
	AlgorithmRoundRobin
	AlgorithmEarliestDeadlineFirst
	AlgorithmLeastExecuted
	AlgorithmLongestWaiting
)

// DefaultNormalizeEvery is how many priority cycles pass between two
// resets of every dynamic priority back to its static value.
const DefaultNormalizeEvery = 100

const none = -1

var algorithmNames = map[Algorithm]string{
	AlgorithmPriority:              "PRIORITY",
	AlgorithmRoundRobin:            "ROUND_ROBIN",
	AlgorithmEarliestDeadlineFirst: "EARLIEST_DEADLINE_FIRST",
	AlgorithmLeastExecuted:         "LEAST_EXECUTED",
	AlgorithmLongestWaiting:        "LONGEST_WAITING",
}

var algorithmAliases = map[string]Algorithm{
	"PRIO": AlgorithmPriority,
	"RR":   AlgorithmRoundRobin,
	"EDF":  AlgorithmEarliestDeadlineFirst,
	"LE":   AlgorithmLeastExecuted,
	"LW":   AlgorithmLongestWaiting,
}

// Algorithms lists the selectable algorithms in declaration order.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmPriority,
		AlgorithmRoundRobin,
		AlgorithmEarliestDeadlineFirst,
		AlgorithmLeastExecuted,
		AlgorithmLongestWaiting,
	}
}

// Valid reports whether a names one of the five policies.
func (a Algorithm) Valid() bool {
	_, ok := algorithmNames[a]
	return ok
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("NONE(%d)", int(a))
}

// Alias returns the short name accepted by ParseAlgorithm, or "".
func (a Algorithm) Alias() string {
	for alias, b := range algorithmAliases {
		if a == b {
			return alias
		}
	}
	return ""
}

// ParseAlgorithm accepts full names (ROUND_ROBIN) and short aliases (RR),
// case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	for a, name := range algorithmNames {
		if name == key {
			return a, nil
		}
	}
	if a, ok := algorithmAliases[key]; ok {
		return a, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// policy picks the index of the next task to run, or none.
// tasks aliases the registry, so policies may update bookkeeping in place.
type policy interface {
	pick(now time.Time, tasks []Task) int
}

func newPolicy(a Algorithm, normalizeEvery int) policy {
	switch a {
	case AlgorithmPriority:
		return &priorityPolicy{every: normalizeEvery}
	case AlgorithmRoundRobin:
		return &roundRobinPolicy{last: none}
	case AlgorithmEarliestDeadlineFirst:
		return &deadlinePolicy{tree: redblacktree.NewWith(cmp)}
	case AlgorithmLeastExecuted:
		return &leastExecutedPolicy{tree: redblacktree.NewWith(cmp)}
	case AlgorithmLongestWaiting:
		return longestWaitingPolicy{}
	default:
		return nonePolicy{}
	}
}

// priorityPolicy runs the ready task with the highest dynamic priority.
// Every task it passes over ages by one, so a low priority task that stays
// ready eventually outranks the others.
type priorityPolicy struct {
	every  int
	cycles int
}

func (p *priorityPolicy) pick(now time.Time, tasks []Task) int {
	p.cycles++
	if p.every > 0 && p.cycles >= p.every {
		for i := range tasks {
			tasks[i].dynamicPriority = tasks[i].staticPriority
		}
		p.cycles = 0
	}

	best := none
	for i := range tasks {
		t := &tasks[i]
		if !t.ready(now) {
			continue
		}
		if best == none || t.dynamicPriority > tasks[best].dynamicPriority {
			best = i
		}
	}

	for i := range tasks {
		if i != best {
			tasks[i].dynamicPriority++
		}
	}

	return best
}

type roundRobinPolicy struct {
	last int
}

func (p *roundRobinPolicy) pick(now time.Time, tasks []Task) int {
	n := len(tasks)
	for k := 1; k <= n; k++ {
		i := (p.last + k) % n
		if tasks[i].ready(now) {
			p.last = i
			return i
		}
	}
	return none
}

type deadlinePolicy struct {
	tree *redblacktree.Tree
}

func (p *deadlinePolicy) pick(now time.Time, tasks []Task) int {
	p.tree.Clear()
	for i := range tasks {
		if tasks[i].ready(now) {
			p.tree.Put(nodeKey{at: tasks[i].deadline(), id: i}, i)
		}
	}
	return leftmost(p.tree)
}

// leastExecutedPolicy ignores the interval on purpose: it keeps every
// running task busy, favouring the one that has run the fewest times.
type leastExecutedPolicy struct {
	tree *redblacktree.Tree
}

func (p *leastExecutedPolicy) pick(now time.Time, tasks []Task) int {
	p.tree.Clear()
	for i := range tasks {
		if tasks[i].state == StateRunning {
			p.tree.Put(nodeKey{count: tasks[i].counters.execCount, id: i}, i)
		}
	}
	return leftmost(p.tree)
}

// longestWaitingPolicy ignores the interval as well.
type longestWaitingPolicy struct{}

func (longestWaitingPolicy) pick(now time.Time, tasks []Task) int {
	best := none
	var longest time.Duration
	for i := range tasks {
		t := &tasks[i]
		if t.state != StateRunning {
			continue
		}
		if w := t.waited(now); best == none || w > longest {
			best, longest = i, w
		}
	}
	return best
}

// nonePolicy is installed for unknown algorithm values; the loop idles.
type nonePolicy struct{}

func (nonePolicy) pick(time.Time, []Task) int { return none }

func leftmost(tree *redblacktree.Tree) int {
	node := tree.Left()
	if node == nil {
		return none
	}
	return node.Value.(int)
}

// nodeKey orders tasks in the red-black tree: by time, then count, then
// registration index so that ties go to the first registered task.
type nodeKey struct {
	at    time.Time
	count uint64
	id    int
}

// cmp implements the Comparator for nodeKey.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.at.Before(kb.at):
		return -1
	case ka.at.After(kb.at):
		return 1
	case ka.count < kb.count:
		return -1
	case ka.count > kb.count:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
