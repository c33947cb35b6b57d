package wizsync

import (
	"fmt"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"External Id", "Account Key", "Account Name", "Contact Name", "Email",
	"Phone", "Mobile", "Account Balance", "Deferred Checks",
	"Open Delivery Notes", "Total Obligo", "Credit Limit", "Manager", "Group",
	"Target Date",
}

// ExportHandler writes the full filtered result set (no pagination) as an
// xlsx workbook. Accepts the same filter params as the query endpoint.
func ExportHandler(caches *Caches) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := queryParamsFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		// Export ignores pagination: one page sized to the whole snapshot.
		params.Page = 1
		params.Limit = len(caches.Balances.Snapshot().Rows)
		if params.Limit < 1 {
			params.Limit = 1
		}

		result, err := runQuery(c.Request.Context(), caches, dbResolver{}, params)
		if err != nil {
			respondError(c, err)
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)

		for i, h := range exportHeaders {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}
		for i, row := range result.Rows {
			setExportRow(f, sheet, i+2, row)
		}

		filename := fmt.Sprintf("customers-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "wizsync", "ExportHandler", "write workbook", nil, err)
		}
	}
}

func setExportRow(f *excelize.File, sheet string, rowNum int, row *EnrichedRow) {
	manager := ""
	group := ""
	targetDate := ""
	if row.Handling != nil {
		manager = row.Handling.ManagerName
		group = row.Handling.GroupName
		if row.Handling.PaymentTargetDate != nil {
			targetDate = row.Handling.PaymentTargetDate.Format("2006-01-02")
		}
	}

	values := []any{
		row.ExternalId, row.AccountKey, row.AccountName, row.ContactName,
		row.Email, row.Phone, row.MobilePhone,
		row.AccountBalance.String(), row.DeferredChecks.String(),
		row.OpenDeliveryNotes.String(), row.TotalObligo.String(),
		row.CreditLimit.String(), manager, group, targetDate,
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
		f.SetCellValue(sheet, cell, v)
	}
}
