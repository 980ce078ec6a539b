package batchio

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// StreamCSV parses requests from r and sends them on the returned channel.
// The first row is the header. Both channels are closed when reading ends;
// the caller must drain the request channel.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan Request, <-chan error) {
	reqCh := make(chan Request, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(reqCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true

		first, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.New("batchio: csv: empty input")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "batchio: csv: read header")
			return
		}
		h, err := newHeader(first)
		if err != nil {
			errCh <- err
			return
		}

		for n := 1; ; n++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "batchio: csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "batchio: csv: read row %d", n)
				return
			}
			if blank(record) {
				n--
				continue
			}

			select {
			case reqCh <- h.parse(n, record):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "batchio: csv: context cancelled")
				return
			}
		}
	}()

	return reqCh, errCh
}

// ReadCSVFile collects every request in the CSV file at path.
func ReadCSVFile(ctx context.Context, path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batchio: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reqCh, errCh := StreamCSV(ctx, f)
	var out []Request
	for req := range reqCh {
		out = append(out, req)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if c != "" {
			return false
		}
	}
	return true
}
