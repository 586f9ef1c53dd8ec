package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

var ErrReportGenerateFail = errors.New("生成 Excel 文件失败")

// reportMaxRows 报表最多包含的通知条数
const reportMaxRows = 1000

// ReportService 投递报表接口
type ReportService interface {
	// ExportDeliveryReport 导出每条通知的收件人数与已读情况，返回内容与建议文件名
	ExportDeliveryReport(ctx context.Context) (*bytes.Buffer, string, error)
}

type reportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, logger *zap.Logger) ReportService {
	return &reportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportDeliveryReport
// ═══════════════════════════════════════════════════════════
//
// 表头：通知ID | 类型 | 内容 | 发送时间 | 收件人数 | 已读 | 未读 | 已读率

func (s *reportService) ExportDeliveryReport(ctx context.Context) (*bytes.Buffer, string, error) {
	stats, err := s.repo.Notification.ListStats(ctx, reportMaxRows)
	if err != nil {
		s.logger.Error("查询通知统计失败", zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Deliveries"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Notification ID", "Type", "Message", "Sent At", "Recipients", "Read", "Unread", "Read Rate"}
	widths := []float64{38, 14, 60, 22, 12, 10, 10, 12}
	for i, h := range headers {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, widths[i])
		f.SetCellValue(sheetName, cell(col, 1), h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	row := 2
	for _, st := range stats {
		unread := st.Recipients - st.ReadCount
		rate := "-"
		if st.Recipients > 0 {
			rate = fmt.Sprintf("%.1f%%", float64(st.ReadCount)*100/float64(st.Recipients))
		}
		f.SetCellValue(sheetName, cell("A", row), st.NotificationID)
		f.SetCellValue(sheetName, cell("B", row), st.Type)
		f.SetCellValue(sheetName, cell("C", row), st.Message)
		f.SetCellValue(sheetName, cell("D", row), st.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, cell("E", row), st.Recipients)
		f.SetCellValue(sheetName, cell("F", row), st.ReadCount)
		f.SetCellValue(sheetName, cell("G", row), unread)
		f.SetCellValue(sheetName, cell("H", row), rate)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}

	return buf, fmtFilename("notification_report", "xlsx", s.now()), nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// fmtFilename 生成带日期的导出文件名
func fmtFilename(prefix, ext string, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format("20060102"), ext)
}
