package main

import (
	"fmt"
	"io"
	"strconv"

	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	assetdata "github.com/lk2023060901/signage-backend/internal/asset/data"
	"github.com/lk2023060901/signage-backend/internal/settings"
	"github.com/spf13/cobra"
)

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List storage directories without a catalog row",
		Long:  "Scans the media volume for asset directories whose catalog row is missing. Nothing is removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, cleanup, err := ctx.openData()
			if err != nil {
				return err
			}
			defer cleanup()

			src := settings.Layered{settings.NewDBSource(d.DB), cfg.SettingsDefaults()}
			limits, err := settings.LoadMediaLimits(cmd.Context(), src)
			if err != nil {
				return err
			}
			volume, err := d.Volume(cfg, limits.StoragePath)
			if err != nil {
				return err
			}

			orphans, err := assetbiz.FindOrphans(cmd.Context(), volume, assetdata.NewAssetRepo(d.DB))
			if err != nil {
				return err
			}
			writeOrphans(cmd.OutOrStdout(), volume.Describe(""), orphans)
			return nil
		},
	}
}

func writeOrphans(out io.Writer, root string, orphans []assetbiz.Orphan) {
	if len(orphans) == 0 {
		fmt.Fprintf(out, "No orphaned directories under %s\n", root)
		return
	}

	rows := make([][]string, 0, len(orphans))
	for _, o := range orphans {
		rows = append(rows, []string{o.Dir, idOrDash(o.TenantID), idOrDash(o.AssetID), o.Reason})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Directory", "Tenant", "Asset", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "%d orphaned directories under %s\n", len(orphans), root)
}

func idOrDash(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}
