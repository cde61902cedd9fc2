package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
	"io/ioutil"

	"github.com/sisatech/toml"

	"github.com/retrovault/amiga/pkg/beam"
	"github.com/retrovault/amiga/pkg/defaults"
)

// Config selects the emulated machine.
type Config struct {
	Revision        Revision
	Format          beam.VideoFormat
	ChipRAM         int
	BlitterAccuracy BlitterAccuracy
	DriveMechanics  DriveMechanics
}

// DefaultConfig returns a PAL ECS machine with 512 KiB of chip RAM.
func DefaultConfig() Config {
	return Config{
		Revision:        AgnusECS1MB,
		Format:          beam.PAL,
		ChipRAM:         512 * 1024,
		BlitterAccuracy: BlitterFast,
		DriveMechanics:  MechanicsA1010,
	}
}

// configFile is the on-disk TOML representation of a machine config.
type configFile struct {
	Machine struct {
		Revision string `toml:"revision"`
		Format   string `toml:"format"`
		ChipRAM  int    `toml:"chip-ram"`
	} `toml:"machine"`
	Blitter struct {
		Accuracy string `toml:"accuracy"`
	} `toml:"blitter"`
	Drives struct {
		Mechanics string `toml:"mechanics"`
	} `toml:"drives"`
}

// LoadConfig reads a machine configuration from a TOML file. Missing
// fields fall back to the defaults.
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	file := new(configFile)
	err = toml.Unmarshal(data, file)
	if err != nil {
		return cfg, fmt.Errorf("parsing machine config: %w", err)
	}

	switch file.Machine.Revision {
	case "", "ecs-1mb":
		cfg.Revision = AgnusECS1MB
	case "ecs-2mb":
		cfg.Revision = AgnusECS2MB
	case "ocs":
		cfg.Revision = AgnusOCS
	default:
		return cfg, fmt.Errorf("%w %q: expected ocs, ecs-1mb or ecs-2mb",
			defaults.ErrInvalidOption, file.Machine.Revision)
	}

	switch file.Machine.Format {
	case "", "pal":
		cfg.Format = beam.PAL
	case "ntsc":
		cfg.Format = beam.NTSC
	default:
		return cfg, fmt.Errorf("%w %q: expected pal or ntsc",
			defaults.ErrInvalidOption, file.Machine.Format)
	}

	if file.Machine.ChipRAM != 0 {
		size := file.Machine.ChipRAM * 1024
		if size&(size-1) != 0 {
			return cfg, fmt.Errorf("%w %d: chip-ram must be a power of two",
				defaults.ErrInvalidOption, file.Machine.ChipRAM)
		}
		cfg.ChipRAM = size
	}

	switch file.Blitter.Accuracy {
	case "", "fast":
		cfg.BlitterAccuracy = BlitterFast
	case "slow", "exact":
		cfg.BlitterAccuracy = BlitterSlow
	default:
		return cfg, fmt.Errorf("%w %q: expected fast or exact",
			defaults.ErrInvalidOption, file.Blitter.Accuracy)
	}

	switch file.Drives.Mechanics {
	case "", "a1010":
		cfg.DriveMechanics = MechanicsA1010
	case "none":
		cfg.DriveMechanics = MechanicsNone
	default:
		return cfg, fmt.Errorf("%w %q: expected a1010 or none",
			defaults.ErrInvalidOption, file.Drives.Mechanics)
	}

	return cfg, nil
}
