// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package uuid provides a UUID identity provider.
package uuid

import (
	"github.com/gofrs/uuid"

	iot "github.com/OscarVanL/COMP6254-IoT-Systems"
	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
)

// ErrGeneratingID indicates error in generating ID.
var ErrGeneratingID = errors.New("failed to generate uuid")

var _ iot.IDProvider = (*uuidProvider)(nil)

type uuidProvider struct{}

// New instantiates a UUID provider.
func New() iot.IDProvider {
	return &uuidProvider{}
}

func (up *uuidProvider) ID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(ErrGeneratingID, err)
	}

	return id.String(), nil
}
