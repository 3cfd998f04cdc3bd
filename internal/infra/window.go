package infra

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// WindowToolTimeout bounds each xdotool/xprop call.
const WindowToolTimeout = 2 * time.Second

var wmClassValue = regexp.MustCompile(`"([^"]+)"`)

// X11WindowSource reads the focused window with xdotool and xprop.
type X11WindowSource struct {
	runner CommandRunner
}

// NewX11WindowSource creates a window source using runner.
func NewX11WindowSource(runner CommandRunner) *X11WindowSource {
	return &X11WindowSource{runner: runner}
}

// ActiveWindow returns the focused window. Title and class are best effort;
// domain.ErrNoWindow is returned when no window id can be read.
func (s *X11WindowSource) ActiveWindow(ctx context.Context) (domain.WindowInfo, error) {
	id, err := s.output(ctx, "xdotool", "getactivewindow")
	if err != nil || id == "" {
		return domain.WindowInfo{}, domain.ErrNoWindow
	}

	info := domain.WindowInfo{WindowID: id}
	info.Title, _ = s.output(ctx, "xdotool", "getwindowname", id)

	if pid, err := s.output(ctx, "xdotool", "getwindowpid", id); err == nil {
		info.PID, _ = strconv.Atoi(pid)
	}

	if class, err := s.output(ctx, "xprop", "-id", id, "WM_CLASS"); err == nil {
		info.ClassName = ParseWMClass(class)
	}
	return info, nil
}

// ParseWMClass returns the class (last quoted value) of an xprop WM_CLASS line,
// e.g. `WM_CLASS(STRING) = "discord", "discord"`.
func ParseWMClass(line string) string {
	m := wmClassValue.FindAllStringSubmatch(line, -1)
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1][1]
}

func (s *X11WindowSource) output(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, WindowToolTimeout)
	defer cancel()
	out, err := s.runner.Output(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

var _ domain.WindowSource = (*X11WindowSource)(nil)
