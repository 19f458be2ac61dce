//go:build darwin

package config

import (
	"os/exec"
	"strings"
)

// security runs the macOS security(1) tool against the login keychain.
func security(args ...string) (string, error) {
	out, err := exec.Command("security", args...).Output()
	return strings.TrimSpace(string(out)), err
}

func keychainGet(service, account string) (string, error) {
	return security("find-generic-password", "-s", service, "-a", account, "-w")
}

func keychainSet(service, account, value string) error {
	_, err := security("add-generic-password", "-U", "-s", service, "-a", account, "-w", value)
	return err
}
