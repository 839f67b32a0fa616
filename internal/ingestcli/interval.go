package ingestcli

import (
	"strings"
	"time"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// ParseProcessingInterval parses the -a flag's "begin[:end]" argument,
// each half in "YYYYMMDD[.hhmmss]" form. A missing end defaults to now,
// so an open-ended interval means "process up through the current time".
func ParseProcessingInterval(arg string, now time.Time) (begin, end model.Time, err error) {
	parts := strings.SplitN(arg, ":", 2)
	begin, err = parseStamp(parts[0])
	if err != nil {
		return model.Time{}, model.Time{}, err
	}
	if len(parts) == 1 {
		return begin, model.FromGoTime(now), nil
	}
	end, err = parseStamp(parts[1])
	if err != nil {
		return model.Time{}, model.Time{}, err
	}
	return begin, end, nil
}

func parseStamp(s string) (model.Time, error) {
	layout := "20060102"
	if strings.Contains(s, ".") {
		layout = "20060102.150405"
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return model.Time{}, dberr.Wrap(dberr.BadFormat, err,
			"ingest.ParseProcessingInterval: %q is not a YYYYMMDD[.hhmmss] timestamp", s)
	}
	return model.FromGoTime(t), nil
}
