package extractor

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// compactionLadder lists the serialization levels tried in order. The cheapest
// level always goes first because level 2 breaks some otherwise readable files.
var compactionLadder = []int{0, 2}

// compactFn rewrites a document at one ladder level. Tests replace it.
var compactFn = compact

var disableConfigDir sync.Once

// decrypt authenticates an encrypted document with password, tried as both the
// owner and the user password, and returns it rewritten without encryption.
// A password that does not open the document fails with pdfcpu.ErrWrongPassword.
func decrypt(data []byte, password string) (out []byte, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("pdfcpu crashed: %v", p)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password
	conf.Cmd = model.DECRYPT
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("write decrypted: %w", err)
	}
	return buf.Bytes(), nil
}

// compact rewrites a document at the given compaction level and returns the new
// bytes.
//
//	level 0: plain rewrite with a classic xref table
//	level 2: duplicate and orphaned objects removed, packed into object streams
func compact(data []byte, level int) (out []byte, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("pdfcpu crashed: %v", p)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	switch level {
	case 0:
		conf.WriteObjectStream = false
		conf.WriteXRefStream = false
	case 2:
		conf.WriteObjectStream = true
		conf.WriteXRefStream = true
	default:
		return nil, fmt.Errorf("unknown compaction level %d", level)
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	if level == 2 {
		if err := api.ValidateContext(ctx); err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}
		if err := api.OptimizeContext(ctx); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return buf.Bytes(), nil
}
