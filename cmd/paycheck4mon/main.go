// Command paycheck4mon is the Status Monitor: a terminal application that
// polls a running paycheck4emud's Control Surface and renders the decoded
// status flags, print-job state, and host resource usage.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kcondict/paycheck4/internal/monitor"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8420", "base URL of the paycheck4emud Control Surface")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	client := monitor.NewClient(*addr)
	model := monitor.NewModel(client, *interval)

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "paycheck4mon:", err)
		os.Exit(1)
	}
}
