package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"radworklist/external/dicom"
	"radworklist/internal/dicomblob"
	fsio "radworklist/internal/io"
	"text/tabwriter"

	"github.com/joho/godotenv"
)

const usage = `usage:
  dicompack pack <dir> <out.bin>
  dicompack unpack <blob.bin> <dir>
  dicompack inspect <blob.bin>`

var ErrUsage = errors.New(usage)

func main() {
	_ = godotenv.Load()

	err := run(context.Background(), os.Args[1:], os.Stdout, fsio.LocalFSHandler{}, dicom.GrailReader{})
	if errors.Is(err, ErrUsage) {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("dicompack: %+v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer, files fsio.DicomIO, reader dicom.HeaderReader) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch {
	case args[0] == "pack" && len(args) == 3:
		return pack(out, files, args[1], args[2])
	case args[0] == "unpack" && len(args) == 3:
		return unpack(ctx, out, files, reader, args[1], args[2])
	case args[0] == "inspect" && len(args) == 2:
		return inspect(out, files, reader, args[1])
	}
	return ErrUsage
}

func pack(out io.Writer, files fsio.DicomIO, dir string, blobPath string) error {
	names, payloads, err := files.ReadDicomDir(dir)
	if err != nil {
		return fmt.Errorf("files.ReadDicomDir(%s). %w", dir, err)
	}

	for i, name := range names {
		if !dicomblob.IsValidDicom(payloads[i]) {
			log.Printf("%s has no DICM signature, it will be skipped when unpacked", name)
		}
	}

	blob, err := dicomblob.Pack(payloads)
	if err != nil {
		return fmt.Errorf("dicomblob.Pack(payloads). %w", err)
	}

	err = files.WriteBlob(blobPath, blob)
	if err != nil {
		return fmt.Errorf("files.WriteBlob(%s). %w", blobPath, err)
	}

	fmt.Fprintf(out, "packed %d files into %s (%d bytes)\n", len(payloads), blobPath, len(blob))
	return nil
}

func unpack(ctx context.Context, out io.Writer, files fsio.DicomIO, reader dicom.HeaderReader, blobPath string, dir string) error {
	blob, err := files.GetBlob(blobPath)
	if err != nil {
		return fmt.Errorf("files.GetBlob(%s). %w", blobPath, err)
	}

	images, err := dicomblob.Sequence(ctx, blob, reader)
	if err != nil {
		return fmt.Errorf("dicomblob.Sequence(). %w", err)
	}

	paths, err := files.WriteStack(dir, images)
	if err != nil {
		return fmt.Errorf("files.WriteStack(%s). %w", dir, err)
	}

	for i, path := range paths {
		fmt.Fprintf(out, "%s\t%s=%g\n", path, images[i].Key.Source, images[i].Key.Value)
	}
	return nil
}

func inspect(out io.Writer, files fsio.DicomIO, reader dicom.HeaderReader, blobPath string) error {
	blob, err := files.GetBlob(blobPath)
	if err != nil {
		return fmt.Errorf("files.GetBlob(%s). %w", blobPath, err)
	}

	records, err := dicomblob.Records(blob)
	if err != nil {
		return fmt.Errorf("dicomblob.Records(blob). %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD\tOFFSET\tLENGTH\tDICOM\tSORT KEY")

	valid := 0
	for i, rec := range records {
		payload := blob[rec.PayloadOffset() : rec.PayloadOffset()+rec.Length]
		if rec.Length == 0 || !dicomblob.IsValidDicom(payload) {
			fmt.Fprintf(w, "%d\t%d\t%d\tno\t-\n", i, rec.Offset, rec.Length)
			continue
		}

		key := dicomblob.SortKey{Value: float64(valid), Source: dicomblob.KeyIndex}
		header, err := reader.ReadHeader(payload)
		if err != nil {
			log.Printf("record %d: reader.ReadHeader(payload). %+v", i, err)
		} else {
			key = dicomblob.ComputeSortKey(header, valid)
		}
		fmt.Fprintf(w, "%d\t%d\t%d\tyes\t%s=%g\n", i, rec.Offset, rec.Length, key.Source, key.Value)
		valid++
	}

	return w.Flush()
}
