package fsutil

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/pkg/fs"
)

// XrayCmd checks the integrity of a filesystem.
var XrayCmd = &cobra.Command{
	Use:   "xray IMAGE",
	Short: "Check the filesystem for inconsistencies.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		strict, err := cmd.Flags().GetBool("strict")
		if err != nil {
			panic(err)
		}

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		doctor := fs.NewDoctor(v)
		doctor.Log = log

		errors := doctor.XrayAll(strict)
		for _, nr := range doctor.Diagnosis.BlockErrors {
			n := doctor.Xray(nr, strict)
			if n == 1 {
				log.Printf("block %d: 1 anomaly", nr)
			} else {
				log.Printf("block %d: %d anomalies", nr, n)
			}
		}

		bitmapErrors := doctor.XrayBitmap(strict)
		if len(doctor.Diagnosis.UsedButUnallocated) > 0 {
			log.Printf("used but unallocated: %v", doctor.Diagnosis.UsedButUnallocated)
		}
		if len(doctor.Diagnosis.UnusedButAllocated) > 0 {
			log.Printf("allocated but unused: %v", doctor.Diagnosis.UnusedButAllocated)
		}

		if errors == 0 && bitmapErrors == 0 {
			log.Printf("no anomalies found")
			return
		}

		os.Exit(1)
	},
}

// RectifyCmd repairs a filesystem.
var RectifyCmd = &cobra.Command{
	Use:   "rectify IMAGE",
	Short: "Repair filesystem inconsistencies.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		strict, err := cmd.Flags().GetBool("strict")
		if err != nil {
			panic(err)
		}
		bitmap, err := cmd.Flags().GetBool("bitmap")
		if err != nil {
			panic(err)
		}

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		doctor := fs.NewDoctor(v)
		doctor.Log = log

		if err := doctor.Rectify(strict); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		if bitmap {
			doctor.RectifyBitmap(strict)
		}

		if err := v.Flush(); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		if err := saveDevice(args[0]); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		remaining := doctor.XrayAll(strict)
		log.Printf("%d erroneous block(s) remaining", remaining)
	},
}

func init() {
	XrayCmd.Flags().Bool("strict", false, "apply strict checks")
	RectifyCmd.Flags().Bool("strict", false, "apply strict checks")
	RectifyCmd.Flags().Bool("bitmap", false, "also rectify the allocation bitmap")
}
