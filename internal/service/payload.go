package service

import (
	"encoding/json"

	"paperindex/internal/domain"
)

// Payloads are the JSON documents stored next to each vector. Image bytes
// become base64 here and nowhere else.

type textPayload struct {
	AllText         string   `json:"all_text"`
	Text            string   `json:"text"`
	References      []string `json:"references"`
	ReferencesFound bool     `json:"references_found"`
}

type passagePayload struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

type imagePayload struct {
	Name       string      `json:"name"`
	ImageBytes []byte      `json:"image_bytes"`
	Ext        string      `json:"ext"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	BBox       domain.Rect `json:"bbox"`
	Caption    string      `json:"caption"`
	PageNumber int         `json:"page_num"`
}

type tablePayload struct {
	Caption    string     `json:"caption"`
	Rows       [][]string `json:"rows"`
	PageNumber int        `json:"page_num"`
}

func newTextPayload(t domain.TextBlock) textPayload {
	return textPayload{
		AllText:         t.AllText,
		Text:            t.Text,
		References:      t.References.Entries,
		ReferencesFound: t.References.Found,
	}
}

func newImagePayload(img domain.PageImageRecord) imagePayload {
	return imagePayload{
		Name:       img.Name,
		ImageBytes: img.Bytes,
		Ext:        img.Ext,
		Width:      img.Width,
		Height:     img.Height,
		BBox:       img.BBox,
		Caption:    img.Caption.String(),
		PageNumber: img.PageNumber,
	}
}

func newTablePayload(t domain.TableRecord) tablePayload {
	return tablePayload{Caption: t.Caption.String(), Rows: t.Rows, PageNumber: t.PageNumber}
}

// trimmer is a payload that can drop its bulkiest field for stores with a
// document size cap.
type trimmer interface {
	trimmed() any
}

func (p textPayload) trimmed() any {
	p.AllText = ""
	return p
}

func (p imagePayload) trimmed() any {
	p.ImageBytes = nil
	return p
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
