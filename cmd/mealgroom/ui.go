package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kitchenops/mealgroom/internal/executor"
	"github.com/kitchenops/mealgroom/internal/orchestrator"
	"github.com/kitchenops/mealgroom/internal/pattern"
	"github.com/kitchenops/mealgroom/internal/progress"
	"github.com/kitchenops/mealgroom/internal/session"
)

// consoleUI is a line-based implementation of the orchestrator's UI. The
// pattern table is re-rendered before every prompt; commands are:
//
//	<n>       resolve pattern n
//	s <n>     skip pattern n
//	u <n>     unskip pattern n
//	r <n>     retry the failed subset of pattern n's last batch
//	q         save and quit
type consoleUI struct {
	in  *bufio.Scanner
	out io.Writer

	mu      sync.Mutex
	counter *progress.Counter
}

func newConsoleUI(in io.Reader, out io.Writer) *consoleUI {
	return &consoleUI{in: bufio.NewScanner(in), out: out}
}

func (u *consoleUI) ConfirmResume(state *session.State) (bool, error) {
	fmt.Fprintf(u.out, "\nFound a session from %s:\n", state.Timestamp.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(u.out, "  %d patterns completed, %d skipped\n",
		len(state.CompletedPatternIDs), len(state.SkippedPatternIDs))
	fmt.Fprintf(u.out, "  %d units created, %d foods created, %d aliases added, %d ingredients updated\n",
		state.Stats.UnitsCreated, state.Stats.FoodsCreated,
		state.Stats.AliasesAdded, state.Stats.IngredientsUpdated)
	return u.askYesNo("Resume this session?")
}

func (u *consoleUI) ConfirmStartFresh(reason string) (bool, error) {
	fmt.Fprintf(u.out, "\nThe session file cannot be used: %s\n", reason)
	return u.askYesNo("Discard it and start fresh?")
}

func (u *consoleUI) NextAction(views []orchestrator.PatternView) (orchestrator.Action, error) {
	for {
		u.renderTable(views)
		fmt.Fprint(u.out, "\n> ")
		line, ok := u.readLine()
		if !ok {
			return orchestrator.Action{Kind: orchestrator.ActionQuit}, nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit":
			return orchestrator.Action{Kind: orchestrator.ActionQuit}, nil
		case "s", "skip":
			if v, ok := pickPattern(views, fields, 1, u.out); ok {
				return orchestrator.Action{Kind: orchestrator.ActionSkip, PatternID: v.Group.ID}, nil
			}
		case "u", "unskip":
			if v, ok := pickPattern(views, fields, 1, u.out); ok {
				return orchestrator.Action{Kind: orchestrator.ActionUnskip, PatternID: v.Group.ID}, nil
			}
		case "r", "retry":
			if v, ok := pickPattern(views, fields, 1, u.out); ok {
				return orchestrator.Action{Kind: orchestrator.ActionRetry, PatternID: v.Group.ID}, nil
			}
		default:
			if v, ok := pickPattern(views, fields, 0, u.out); ok {
				action, built := u.buildOperation(v)
				if built {
					return action, nil
				}
			}
		}
	}
}

// buildOperation walks the operator through resolving one pattern.
// Returns built=false if the operator backed out.
func (u *consoleUI) buildOperation(v orchestrator.PatternView) (orchestrator.Action, bool) {
	g := v.Group
	if v.Status != pattern.StatusPending {
		fmt.Fprintf(u.out, "pattern %q is %s\n", g.DisplayText, v.Status)
		return orchestrator.Action{}, false
	}

	fmt.Fprintf(u.out, "\nPattern %q (%s): %d ingredients in %d recipes\n",
		g.DisplayText, g.Kind, len(g.Ingredients), len(g.RecipeIDs))
	if v.Hint != nil && (v.Hint.UnitName != "" || v.Hint.FoodName != "") {
		fmt.Fprintf(u.out, "Parser hint: unit=%q (%.0f%%) food=%q (%.0f%%)\n",
			v.Hint.UnitName, v.Hint.UnitConfidence*100,
			v.Hint.FoodName, v.Hint.FoodConfidence*100)
	}

	var op executor.Operation
	switch g.Kind {
	case pattern.KindUnit:
		choice := u.ask("[c]reate unit, [a]lias to existing unit, or [b]ack: ")
		switch choice {
		case "c":
			name := u.ask("Unit name: ")
			if name == "" {
				return orchestrator.Action{}, false
			}
			abbr := u.ask("Abbreviation (empty for default): ")
			op = executor.Operation{
				Kind: executor.OpCreateUnit, PatternID: g.ID,
				Name: name, Abbreviation: abbr, Affected: g.Ingredients,
			}
		case "a":
			target := u.ask("Existing unit id: ")
			if target == "" {
				return orchestrator.Action{}, false
			}
			op = executor.Operation{
				Kind: executor.OpAddUnitAlias, PatternID: g.ID,
				TargetID: target, Alias: g.DisplayText, Affected: g.Ingredients,
			}
		default:
			return orchestrator.Action{}, false
		}

	case pattern.KindFood:
		choice := u.ask("[c]reate food, [a]lias to existing food, or [b]ack: ")
		switch choice {
		case "c":
			name := u.ask("Food name: ")
			if name == "" {
				return orchestrator.Action{}, false
			}
			op = executor.Operation{
				Kind: executor.OpCreateFood, PatternID: g.ID,
				Name: name, Affected: g.Ingredients,
			}
		case "a":
			target := u.ask("Existing food id: ")
			if target == "" {
				return orchestrator.Action{}, false
			}
			op = executor.Operation{
				Kind: executor.OpAddFoodAlias, PatternID: g.ID,
				TargetID: target, Alias: g.DisplayText, Affected: g.Ingredients,
			}
		default:
			return orchestrator.Action{}, false
		}
	}

	fmt.Fprintf(u.out, "\nThis will update %d ingredients across %d recipes.\n",
		len(op.Affected), len(g.RecipeIDs))
	confirmed, _ := u.askYesNo("Proceed?")
	if !confirmed {
		return orchestrator.Action{}, false
	}

	if progress.ShouldShowProgress() {
		u.mu.Lock()
		u.counter = progress.NewCounter(u.out, "updating", len(op.Affected))
		u.mu.Unlock()
	}
	return orchestrator.Action{
		Kind: orchestrator.ActionExecute, PatternID: g.ID, Op: op,
	}, true
}

func (u *consoleUI) ShowResult(res *executor.Result) (bool, error) {
	u.mu.Lock()
	if u.counter != nil {
		u.counter.Finish()
		u.counter = nil
	}
	u.mu.Unlock()

	switch res.Status {
	case executor.StatusAllOK:
		fmt.Fprintf(u.out, "Done: %d ingredients updated in %s.\n",
			len(res.Succeeded), res.Duration.Round(10*time.Millisecond))
		return false, nil
	case executor.StatusAborted:
		fmt.Fprintf(u.out, "Aborted: %s\n", res.AbortReason)
		if len(res.Failed) > 0 {
			u.printFailures(res)
		}
		return false, nil
	default:
		fmt.Fprintf(u.out, "Partial result: %d updated, %d failed.\n",
			len(res.Succeeded), len(res.Failed))
		u.printFailures(res)
		return u.askYesNoDefault("Retry the failed ingredients now?", false)
	}
}

func (u *consoleUI) Notify(msg string) {
	fmt.Fprintln(u.out, msg)
}

// progressEvent feeds executor fan-out progress into the counter.
func (u *consoleUI) progressEvent(ev executor.ProgressEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counter != nil {
		u.counter.Set(ev.Done, ev.Total)
	}
}

func (u *consoleUI) printFailures(res *executor.Result) {
	for _, f := range res.Failed {
		fmt.Fprintf(u.out, "  %s: [%s] %s\n", f.Ref, f.Kind, f.Message)
	}
}

func (u *consoleUI) renderTable(views []orchestrator.PatternView) {
	fmt.Fprintf(u.out, "\n%4s  %-5s %-30s %5s %8s  %s\n",
		"#", "KIND", "PATTERN", "COUNT", "RECIPES", "STATUS")
	for i, v := range views {
		marker := ""
		if len(v.Group.SimilarIDs) > 0 {
			marker = fmt.Sprintf(" (~%d similar)", len(v.Group.SimilarIDs))
		}
		fmt.Fprintf(u.out, "%4d  %-5s %-30s %5d %8d  %s%s\n",
			i+1, v.Group.Kind, truncate(v.Group.DisplayText, 30),
			len(v.Group.Ingredients), len(v.Group.RecipeIDs), v.Status, marker)
	}
}

func (u *consoleUI) ask(prompt string) string {
	fmt.Fprint(u.out, prompt)
	line, _ := u.readLine()
	return strings.TrimSpace(line)
}

func (u *consoleUI) askYesNo(prompt string) (bool, error) {
	return u.askYesNoDefault(prompt, false)
}

func (u *consoleUI) askYesNoDefault(prompt string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(u.out, "%s %s ", prompt, hint)
	line, ok := u.readLine()
	if !ok {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, nil
	}
}

func (u *consoleUI) readLine() (string, bool) {
	if !u.in.Scan() {
		return "", false
	}
	return u.in.Text(), true
}

// pickPattern resolves a 1-based index argument at position idx.
func pickPattern(views []orchestrator.PatternView, fields []string, idx int, out io.Writer) (orchestrator.PatternView, bool) {
	if idx >= len(fields) {
		fmt.Fprintln(out, "missing pattern number")
		return orchestrator.PatternView{}, false
	}
	n, err := strconv.Atoi(fields[idx])
	if err != nil || n < 1 || n > len(views) {
		fmt.Fprintf(out, "no pattern %q\n", fields[idx])
		return orchestrator.PatternView{}, false
	}
	return views[n-1], true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
