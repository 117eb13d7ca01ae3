package sitemodel_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/stretchr/testify/assert"
)

func TestModelError_Is(t *testing.T) {
	err := &sitemodel.ModelError{Kind: sitemodel.KindNotFound, Context: "/site/devices", Err: fs.ErrNotExist}
	wrapped := fmt.Errorf("loading site: %w", err)

	assert.ErrorIs(t, wrapped, sitemodel.ErrNotFound)
	assert.ErrorIs(t, wrapped, fs.ErrNotExist)
	assert.NotErrorIs(t, wrapped, sitemodel.ErrParse)
	assert.NotErrorIs(t, wrapped, errors.New("NOT_FOUND"))
}

func TestModelError_Message(t *testing.T) {
	tests := []struct {
		err  *sitemodel.ModelError
		want string
	}{
		{err: &sitemodel.ModelError{Kind: sitemodel.KindNotInitialized}, want: "NOT_INITIALIZED"},
		{err: &sitemodel.ModelError{Kind: sitemodel.KindMissingField, Context: "deviceRegistryId"}, want: "MISSING_FIELD: deviceRegistryId"},
		{
			err:  &sitemodel.ModelError{Kind: sitemodel.KindParse, Context: "/s/cloud_iot_config.json", Err: errors.New("unexpected EOF")},
			want: "PARSE: /s/cloud_iot_config.json: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
