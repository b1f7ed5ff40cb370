package ui

import "strings"

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	dim         = "\033[2m"
	beeYellow   = "\033[38;5;226m"
	honeyOrange = "\033[38;5;214m"
	mint        = "\033[38;5;121m"
	seafoam     = "\033[38;5;49m"
	cobalt      = "\033[38;5;33m"
	deepIndigo  = "\033[38;5;61m"
	threadTeal  = "\033[38;5;37m"
)

// Banner renders a colored threadload wordmark.
func Banner() string {
	var b strings.Builder

	letters := [][]string{
		{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
		{"██╗  ██╗", "██║  ██║", "███████║", "██╔══██║", "██║  ██║", "╚═╝  ╚═╝"},
		{"██████╗ ", "██╔══██╗", "██████╔╝", "██╔══██╗", "██║  ██║", "╚═╝  ╚═╝"},
		{"███████╗", "██╔════╝", "█████╗  ", "██╔══╝  ", "███████╗", "╚══════╝"},
		{" █████╗ ", "██╔══██╗", "███████║", "██╔══██║", "██║  ██║", "╚═╝  ╚═╝"},
		{"██████╗ ", "██╔══██╗", "██║  ██║", "██║  ██║", "██████╔╝", "╚═════╝ "},
	}
	gradient := []string{threadTeal, seafoam, mint, beeYellow, honeyOrange, cobalt}
	rows := make([]string, len(letters[0]))
	for i, letter := range letters {
		color := gradient[i%len(gradient)]
		for row := 0; row < len(letter); row++ {
			rows[row] += color + letter[row] + " "
		}
	}
	for _, line := range rows {
		b.WriteString(bold + line + reset + "\n")
	}

	b.WriteString("\n")
	b.WriteString(bold + threadTeal + "threadload" + reset + "  •  " + deepIndigo + "per-thread CPU load" + reset + "\n\n")

	return b.String()
}

// Stopped dims s to mark figures from a stopped monitor.
func Stopped(s string) string {
	return dim + s + reset
}
