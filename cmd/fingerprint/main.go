// Command fingerprint computes the structural fingerprint of a reference
// image and optionally stores it on a tenant template.
//
// Usage:
//
//	fingerprint -image invoice.png
//	fingerprint -image invoice.png -tenant acme -template tpl-1 -document-type invoice -save
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"digidoc/internal/app"
	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/queue"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	imagePath := flag.String("image", "", "reference image to fingerprint")
	tenantID := flag.String("tenant", "", "tenant owning the template")
	templateID := flag.String("template", "", "template to attach the fingerprint to")
	docType := flag.String("document-type", "", "document type of a new template")
	vendor := flag.String("vendor", "", "vendor of a new template")
	formatName := flag.String("format", "", "format name of a new template")
	save := flag.Bool("save", false, "store the fingerprint on the template")
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		return errors.New("-image is required")
	}
	if *save && (*tenantID == "" || *templateID == "") {
		return errors.New("-save needs -tenant and -template")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Nothing is enqueued; avoid connecting to a queue backend.
	cfg.Queue.Adapter = queue.AdapterMemory
	logger := logging.NewWithWriter(cfg.Log, os.Stderr)

	raw, err := os.ReadFile(*imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, config.NewStore(cfg, nil), logger)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	if !*save {
		fp, err := a.Processor.Fingerprint(ctx, raw)
		if err != nil {
			return err
		}
		return printJSON(fp)
	}

	tmpl, err := a.Cache.GetByID(ctx, *tenantID, *templateID)
	switch {
	case errors.Is(err, domain.ErrTemplateNotFound):
		tmpl = &domain.CachedTemplate{TemplateID: *templateID, TenantID: *tenantID}
	case err != nil:
		return err
	}
	for dst, v := range map[*string]string{
		&tmpl.DocumentType: *docType,
		&tmpl.Vendor:       *vendor,
		&tmpl.FormatName:   *formatName,
	} {
		if v != "" {
			*dst = v
		}
	}

	if err := a.Processor.LearnTemplate(ctx, tmpl, raw); err != nil {
		return err
	}
	return printJSON(tmpl)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
