package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"paperindex/internal/domain"
)

var (
	extractOutput    string
	extractWithBytes bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Print the structured content of one PDF as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write JSON to this file instead of stdout")
	extractCmd.Flags().BoolVar(&extractWithBytes, "with-bytes", false, "include base64 image bytes")
	rootCmd.AddCommand(extractCmd)
}

type imageView struct {
	Name       string      `json:"name"`
	PageNumber int         `json:"page_num"`
	BBox       domain.Rect `json:"bbox"`
	Caption    string      `json:"caption"`
	Ext        string      `json:"ext"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Size       int         `json:"size"`
	Bytes      []byte      `json:"image_bytes,omitempty"`
}

type tableView struct {
	Caption    string     `json:"caption"`
	PageNumber int        `json:"page_num"`
	Rows       [][]string `json:"rows"`
}

type extractionView struct {
	Text struct {
		AllText    string `json:"all_text"`
		Text       string `json:"text"`
		References any    `json:"references"`
	} `json:"text"`
	Images       map[string]imageView `json:"images"`
	Tables       map[string]tableView `json:"tables"`
	Metadata     map[string]string    `json:"metadata"`
	Troubleshoot []string             `json:"troubleshoot"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	ex, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	res, err := ex.Extract(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if extractOutput != "" {
		f, err := os.Create(extractOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(newExtractionView(res, extractWithBytes))
}

func newExtractionView(res *domain.Extraction, withBytes bool) extractionView {
	doc := res.Document
	var v extractionView
	v.Text.AllText = doc.Text.AllText
	v.Text.Text = doc.Text.Text
	if doc.Text.References.Found {
		v.Text.References = doc.Text.References.Entries
	} else {
		v.Text.References = domain.ReferencesUnknown
	}
	v.Images = make(map[string]imageView, len(doc.Images))
	for id, img := range doc.Images {
		iv := imageView{
			Name:       img.Name,
			PageNumber: img.PageNumber,
			BBox:       img.BBox,
			Caption:    img.Caption.String(),
			Ext:        img.Ext,
			Width:      img.Width,
			Height:     img.Height,
			Size:       len(img.Bytes),
		}
		if withBytes {
			iv.Bytes = img.Bytes
		}
		v.Images[id] = iv
	}
	v.Tables = make(map[string]tableView, len(doc.Tables))
	for id, t := range doc.Tables {
		v.Tables[id] = tableView{Caption: t.Caption.String(), PageNumber: t.PageNumber, Rows: t.Rows}
	}
	v.Metadata = doc.Metadata
	v.Troubleshoot = make([]string, len(res.Troubleshoot))
	for i, w := range res.Troubleshoot {
		v.Troubleshoot[i] = w.String()
	}
	return v
}
