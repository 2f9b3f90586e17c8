package main

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/codec"
	"tickrec/internal/sink"
)

var dumpLimit int

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print a log file as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := dumpFile(args[0], loaded.Codec, os.Stdout, dumpLimit)
		logs.Infof("dumped %d records from %s", n, args[0])
		return err
	},
}

func init() {
	dumpCmd.Flags().IntVar(&dumpLimit, "limit", 0, "stop after this many records, 0 prints all")
	rootCmd.AddCommand(dumpCmd)
}

// dumpFile writes up to limit records of path to w. A torn last record is
// reported but the records before it are kept.
func dumpFile(path string, c codec.Codec, w io.Writer, limit int) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	out := bufio.NewWriter(w)
	defer out.Flush()

	dec := c.NewDecoder(file)
	var n int
	for limit <= 0 || n < limit {
		e, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			logs.Warnf("%s: torn record after %d records", path, n)
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "decode record %d of %s", n, path)
		}

		data, err := sink.MarshalRecord(e)
		if err != nil {
			return n, err
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			return n, err
		}
		n++
	}
	return n, out.Flush()
}
