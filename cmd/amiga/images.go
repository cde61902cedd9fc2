package main

import (
	"fmt"
	"os"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/sisatech/tablewriter"
	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/cmd/amiga/fsutil"
	"github.com/retrovault/amiga/pkg/media"
)

var infoCmd = &cobra.Command{
	Use:   "info IMAGE",
	Short: "Identify an image file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		path := args[0]

		kind, err := media.About(path)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		info, err := os.Stat(path)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"", ""})
		table.Append([]string{"File", path})
		table.Append([]string{"Format", kind.String()})
		table.Append([]string{"Size", bytefmt.ByteSize(uint64(info.Size()))})

		switch kind {
		case media.TypeADF, media.TypeADZ:
			adf, err := openAnyADF(path, kind)
			if err == nil {
				table.Append([]string{"Geometry", fmt.Sprintf("%d - %d - %d",
					adf.NumCyls(), adf.NumHeads(), adf.NumSectors())})
			}
		case media.TypeEADF:
			eadf, err := media.OpenEADF(path)
			if err == nil {
				table.Append([]string{"Tracks", fmt.Sprintf("%d", eadf.StoredTracks())})
				table.Append([]string{"Density", fmt.Sprintf("%v", eadf.Density())})
			}
		}

		table.Render()
	},
}

func openAnyADF(path string, kind media.Type) (*media.ADFFile, error) {
	if kind == media.TypeADZ {
		return media.OpenADZ(path)
	}
	return media.OpenADF(path)
}

var geometryCmd = &cobra.Command{
	Use:   "geometry IMAGE",
	Short: "List the geometries compatible with a hard drive image.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		info, err := os.Stat(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		geos := media.DriveGeometries(int(info.Size()))
		if len(geos) == 0 {
			log.Errorf("no geometry matches %d bytes", info.Size())
			os.Exit(1)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Cylinders", "Heads", "Sectors", "Capacity"})
		for _, g := range geos {
			table.Append([]string{
				fmt.Sprintf("%d", g.Cylinders),
				fmt.Sprintf("%d", g.Heads),
				fmt.Sprintf("%d", g.Sectors),
				bytefmt.ByteSize(uint64(g.NumBytes())),
			})
		}
		table.Render()
	},
}

var partitionsCmd = &cobra.Command{
	Use:   "partitions IMAGE",
	Short: "List the partitions of a hard drive image.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		hdf, err := media.OpenHDF(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		if hdf.HasRDB() {
			log.Infof("rigid disk block found")
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Lower Cyl", "Upper Cyl", "Capacity"})
		for _, p := range hdf.Partitions {
			size := (p.UpperCyl - p.LowerCyl + 1) * hdf.Geometry.Heads *
				hdf.Geometry.Sectors * hdf.Geometry.BSize
			table.Append([]string{
				p.Name,
				fmt.Sprintf("%d", p.LowerCyl),
				fmt.Sprintf("%d", p.UpperCyl),
				bytefmt.ByteSize(uint64(size)),
			})
		}
		table.Render()

		for i, drv := range hdf.Drivers {
			log.Printf("driver %d: dostype %08x, %d segment blocks",
				i, drv.DosType, len(drv.Blocks))
		}
	},
}

var bootblockCmd = &cobra.Command{
	Use:   "bootblock IMAGE",
	Short: "Identify the boot block of a floppy image.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		dev, err := fsutil.OpenDevice(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		block := make([]byte, dev.BSize())
		if err := dev.ReadBlock(block, 0); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		info := media.IdentifyBootBlock(block)
		log.Printf("%s", info.Name)
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert SOURCE DEST",
	Short: "Convert between image formats (adf, adz).",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		src, dst := args[0], args[1]

		kind, err := media.About(src)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		adf, err := openAnyADF(src, kind)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		if strings.HasSuffix(strings.ToLower(dst), ".adz") {
			f, err := os.Create(dst)
			if err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}
			defer f.Close()
			err = media.WriteADZ(adf, f)
			if err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}
			return
		}

		if err := adf.Save(dst); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
	},
}
