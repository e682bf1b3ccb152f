//go:build !windows

package notification

func showBlocking(title, message string) {}

func showToast(title, message string) {}
