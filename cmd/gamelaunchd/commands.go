package main

import (
	"fmt"
	"time"
)

func runActiveCommand(flags *QueryFlags) error {
	client := NewAPIClient(flags.APIUrl, flags.APITimeout)
	games, err := client.Active()
	if err != nil {
		return err
	}
	if len(games) == 0 {
		fmt.Println("No games running")
		return nil
	}
	for _, g := range games {
		fmt.Printf("%-12s %-30s %-10s up %s\n",
			g.Game.ID, g.Game.Name, g.State, time.Since(g.StartedAt).Round(time.Second))
	}
	return nil
}

func runHistoryCommand(flags *QueryFlags) error {
	client := NewAPIClient(flags.APIUrl, flags.APITimeout)
	records, err := client.History()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No execution records")
		return nil
	}
	for _, r := range records {
		outcome := fmt.Sprintf("exit %d", r.ExitCode)
		if !r.Success && r.Error != "" {
			outcome = r.Error
		}
		fmt.Printf("%s  %-12s %-30s ran %-10s %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.GameID, r.GameName, r.Duration.Round(time.Second), outcome)
	}
	return nil
}

func runLogsCommand(flags *QueryFlags) error {
	client := NewAPIClient(flags.APIUrl, flags.APITimeout)
	lines, err := client.Logs()
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

func runSignalCommand(flags *QueryFlags, id, action string) error {
	client := NewAPIClient(flags.APIUrl, flags.APITimeout)
	var err error
	if action == "kill" {
		err = client.Kill(id)
	} else {
		err = client.Terminate(id)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Sent %s to game %s\n", action, id)
	return nil
}
