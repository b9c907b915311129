package tx

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// templateRe matches {{ data some/file }} and {{ hash some/file }} markers
// inside a mock transaction file.
var templateRe = regexp.MustCompile(`\{\{ ?([a-z]+) (.+?) ?\}\}`)

// ExpandTemplates replaces {{ data path }} with the hex-encoded contents of
// path and {{ hash path }} with its hex-encoded blake2b digest. Relative
// paths resolve against baseDir, usually the tx file's directory.
func ExpandTemplates(src []byte, baseDir string) ([]byte, error) {
	var expandErr error
	out := templateRe.ReplaceAllFunc(src, func(match []byte) []byte {
		if expandErr != nil {
			return match
		}
		groups := templateRe.FindSubmatch(match)
		kind, path := string(groups[1]), string(groups[2])
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			expandErr = errors.Wrapf(err, "expanding {{ %s }}", kind)
			return match
		}
		switch kind {
		case "data":
			return []byte(fmt.Sprintf("0x%x", data))
		case "hash":
			h := blake2b.Sum256(data)
			return []byte(fmt.Sprintf("0x%x", h[:]))
		}
		expandErr = errors.Errorf("unknown template marker %q", kind)
		return match
	})
	if expandErr != nil {
		return nil, expandErr
	}
	return out, nil
}
