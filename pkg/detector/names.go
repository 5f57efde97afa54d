package detector

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"os"
	"strings"
)

//go:embed coco.names
var cocoNames []byte

var ErrNoNames = errors.New("class names file is empty")

// COCONames returns the 80 COCO labels used by stock YOLO checkpoints.
func COCONames() []string {
	names, _ := parseNames(cocoNames)
	return names
}

// LoadNames reads one label per line. An empty path yields COCONames.
func LoadNames(path string) ([]string, error) {
	if path == "" {
		return COCONames(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseNames(b)
}

func parseNames(b []byte) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoNames
	}
	return names, nil
}
