package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

func TestEmailRequiresFrom(t *testing.T) {
	viper.Set("from", "")
	t.Cleanup(func() { viper.Set("from", "") })

	err := emailCmd.PreRunE(emailCmd, []string{"band", "friend@example.com"})
	if err == nil {
		t.Error("Expected error when from is missing, got nil")
	} else if err.Error() != "required flag(s) \"from\" not set" {
		t.Errorf("Expected 'required flag(s) \"from\" not set', got %v", err)
	}

	// Set from and check success
	viper.Set("from", "reports@example.com")
	err = emailCmd.PreRunE(emailCmd, []string{"band", "friend@example.com"})
	if err != nil {
		t.Errorf("Expected nil when from is set, got %v", err)
	}
}

func TestJoinRejectsReplayWithRefresh(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	joinCmd.Flags().Set("replay", "true")
	if err := joinCmd.PreRunE(joinCmd, []string{"band", "ann"}); err != nil {
		t.Errorf("Expected --replay alone to pass, got %v", err)
	}

	joinCmd.Flags().Set("refresh", "true")
	if err := joinCmd.PreRunE(joinCmd, []string{"band", "ann"}); err == nil {
		t.Error("Expected error for --replay with --refresh, got nil")
	}
}
