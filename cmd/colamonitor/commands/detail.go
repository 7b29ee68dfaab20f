package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/extract"
)

const missing = "N/A"

var detailCmd = &cobra.Command{
	Use:   "detail <ttb-id>",
	Short: "Print the public detail record of one label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := application.Detail(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows(detailRows(detail))
		t.AppendFooter(table.Row{"Link", application.DetailURL(detail.TTBID)})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detailCmd)
}

func detailRows(d domain.LabelDetail) []table.Row {
	return []table.Row{
		{"TTB ID", d.TTBID},
		{extract.FieldPermitNumber, d.PermitNo.Or(missing)},
		{extract.FieldSerialNumber, d.SerialNumber.Or(missing)},
		{extract.FieldCompletedDate, d.CompletedDate.Or(missing)},
		{extract.FieldFancifulName, d.FancifulName.Or(missing)},
		{extract.FieldBrandName, d.BrandName.Or(missing)},
		{extract.FieldOrigin, d.Origin.Or(missing)},
		{extract.FieldOriginCode, d.OriginDesc.Or(missing)},
		{extract.FieldClassType, d.ClassType.Or(missing)},
		{extract.FieldClassTypeCode, d.ClassTypeDesc.Or(missing)},
		{extract.FieldStatus, d.Status.Or(missing)},
		{extract.FieldVendorCode, d.VendorCode.Or(missing)},
		{extract.FieldTypeOfApplication, d.TypeOfApplication.Or(missing)},
		{extract.FieldApprovalDate, d.ApprovalDate.Or(missing)},
	}
}
