package views

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
)

func PageTitle(title string) string {
	if title = strings.TrimSpace(title); title == "" {
		return "EcoLearn"
	}
	return title + " · EcoLearn"
}

func LoginTitle(teacher bool) string {
	if teacher {
		return "Teacher sign in"
	}
	return "Sign in"
}

// CSRFHeaders is the hx-headers value that makes boosted requests pass the
// CSRF check.
func CSRFHeaders(token string) string {
	if token == "" {
		return "{}"
	}
	raw, err := json.Marshal(map[string]string{"X-CSRF-Token": token})
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// RefreshContent is the meta refresh value of the loading page.
func RefreshContent(data viewmodels.LoadingViewData) string {
	refresh := data.RefreshSeconds
	if refresh <= 0 {
		refresh = 1
	}
	target := data.Path
	if target == "" {
		target = "/"
	}
	return strconv.Itoa(refresh) + "; url=" + target
}

func HumanizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "teacher":
		return "Teacher"
	case "admin":
		return "Administrator"
	case "student", "":
		return "Student"
	default:
		return role
	}
}

func ToastClass(category string) string {
	switch category {
	case "success":
		return "toast toast-success"
	case "error":
		return "toast toast-error"
	case "warning":
		return "toast toast-warning"
	default:
		return "toast toast-info"
	}
}
