package clipboard

import (
	"bytes"
	"errors"
	"os/exec"
	"runtime"
)

// System shells out to the platform clipboard utilities. Linux needs xclip
// (X11) or wl-paste/wl-copy (Wayland) on PATH.
type System struct{}

type tool struct {
	readText  []string
	readImage []string
	writeText []string
}

func pick() (tool, error) {
	switch runtime.GOOS {
	case "darwin":
		return tool{
			readText:  []string{"pbpaste"},
			writeText: []string{"pbcopy"},
		}, nil
	case "linux":
		if _, err := exec.LookPath("wl-paste"); err == nil {
			return tool{
				readText:  []string{"wl-paste", "--no-newline", "--type", "text"},
				readImage: []string{"wl-paste", "--type", "image/png"},
				writeText: []string{"wl-copy"},
			}, nil
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return tool{
				readText:  []string{"xclip", "-selection", "clipboard", "-o"},
				readImage: []string{"xclip", "-selection", "clipboard", "-t", "image/png", "-o"},
				writeText: []string{"xclip", "-selection", "clipboard"},
			}, nil
		}
	}
	return tool{}, ErrUnavailable
}

func run(argv []string, stdin []byte) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ErrUnavailable
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return out, nil
}

func (System) ReadText() (string, error) {
	t, err := pick()
	if err != nil {
		return "", err
	}
	out, err := run(t.readText, nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (System) ReadImagePNG() ([]byte, error) {
	t, err := pick()
	if err != nil {
		return nil, err
	}
	return run(t.readImage, nil)
}

func (System) WriteText(s string) error {
	t, err := pick()
	if err != nil {
		return err
	}
	_, err = run(t.writeText, []byte(s))
	return err
}
