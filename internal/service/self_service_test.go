package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
)

func setupTestSelfService() (SelfService, SeatService, *memStore) {
	repo, st := newMockRepository()
	logger := zap.NewNop()
	seats := NewSeatService(&config.SeatsConfig{InitialCount: 10, PerRow: 5}, repo, logger)
	export := NewExportService(repo, logger)
	return NewSelfService(repo, seats, export, logger), seats, st
}

func studentCaller(s *model.Student) model.Identity {
	return model.Identity{UserID: "user-" + s.StudentID, Role: model.RoleStudent, StudentID: s.StudentID}
}

func TestSelfService_NoProfile(t *testing.T) {
	svc, _, _ := setupTestSelfService()
	ctx := context.Background()

	if _, err := svc.Details(ctx, model.Identity{Role: model.RoleAdmin}); !errors.Is(err, ErrNoStudentProfile) {
		t.Errorf("期望 ErrNoStudentProfile，实际: %v", err)
	}
	if _, err := svc.Details(ctx, model.Identity{Role: model.RoleStudent, StudentID: "deleted"}); !errors.Is(err, ErrNoStudentProfile) {
		t.Errorf("档案已删除时期望 ErrNoStudentProfile，实际: %v", err)
	}
}

func TestSelfService_PaymentsScopedToCaller(t *testing.T) {
	svc, _, st := setupTestSelfService()
	me := st.addStudent("Asha")
	other := st.addStudent("Ravi")
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 100, Status: model.PaymentPaid, Month: "March", Year: 2025})
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 200, Status: model.PaymentPending, Month: "April", Year: 2025})
	st.addPayment(model.Payment{StudentID: other.StudentID, Amount: 999, Status: model.PaymentPending, Month: "April", Year: 2025})

	resp, err := svc.Payments(context.Background(), studentCaller(me), &dto.MyPaymentsRequest{})
	if err != nil {
		t.Fatalf("Payments 应成功: %v", err)
	}
	if len(resp.Payments) != 2 {
		t.Errorf("期望仅返回本人 2 条记录，实际=%d", len(resp.Payments))
	}
	for _, p := range resp.Payments {
		if p.StudentID != me.StudentID {
			t.Errorf("返回了他人的缴费记录: %s", p.StudentID)
		}
	}
	if resp.Statistics.Total != 2 || resp.Statistics.PaidAmount != 100 {
		t.Errorf("统计错误: %+v", resp.Statistics)
	}

	resp, _ = svc.Payments(context.Background(), studentCaller(me), &dto.MyPaymentsRequest{Status: model.PaymentPaid})
	if len(resp.Payments) != 1 {
		t.Errorf("按状态过滤期望 1 条，实际=%d", len(resp.Payments))
	}
}

func TestSelfService_DuePayments(t *testing.T) {
	svc, _, st := setupTestSelfService()
	me := st.addStudent("Asha")
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 200, Status: model.PaymentPending, Month: "May", Year: 2025,
		DueDate: time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)})
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 300, Status: model.PaymentPending, Month: "April", Year: 2025,
		DueDate: time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC)})
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 400, Status: model.PaymentOverdue, Month: "March", Year: 2025,
		DueDate: time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)})
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 500, Status: model.PaymentPaid, Month: "February", Year: 2025})

	resp, err := svc.DuePayments(context.Background(), studentCaller(me))
	if err != nil {
		t.Fatalf("DuePayments 应成功: %v", err)
	}
	if resp.TotalDue != 900 {
		t.Errorf("期望待缴合计 900，实际=%v", resp.TotalDue)
	}
	if len(resp.Pending) != 2 || len(resp.Overdue) != 1 {
		t.Errorf("期望 pending=2 overdue=1，实际=%d/%d", len(resp.Pending), len(resp.Overdue))
	}
	if resp.NextDueDate != "2025-05-15" {
		t.Errorf("期望下一截止日 2025-05-15，实际=%s", resp.NextDueDate)
	}
}

func TestSelfService_AlertsIncludeBroadcast(t *testing.T) {
	svc, _, st := setupTestSelfService()
	me := st.addStudent("Asha")
	other := st.addStudent("Ravi")
	ctx := context.Background()
	alerts := (&mockAlertRepo{st})

	mine, theirs := me.StudentID, other.StudentID
	_ = alerts.Create(ctx, &model.Alert{Type: model.AlertInfo, Title: "mine", Message: "m", StudentID: &mine})
	_ = alerts.Create(ctx, &model.Alert{Type: model.AlertInfo, Title: "broadcast", Message: "m"})
	_ = alerts.Create(ctx, &model.Alert{Type: model.AlertInfo, Title: "theirs", Message: "m", StudentID: &theirs})

	resp, err := svc.Alerts(ctx, studentCaller(me))
	if err != nil {
		t.Fatalf("Alerts 应成功: %v", err)
	}
	if len(resp.Alerts) != 2 || resp.UnreadCount != 2 {
		t.Errorf("期望本人与广播共 2 条，实际=%d 未读=%d", len(resp.Alerts), resp.UnreadCount)
	}
	for _, a := range resp.Alerts {
		if a.Title == "theirs" {
			t.Error("不应返回他人的提醒")
		}
	}
}

func TestSelfService_SeatAndDashboard(t *testing.T) {
	svc, seats, st := setupTestSelfService()
	me := st.addStudent("Asha")
	seat := st.addSeat(12)
	ctx := context.Background()

	got, err := svc.Seat(ctx, studentCaller(me))
	if err != nil || got != nil {
		t.Fatalf("未分配座位应返回 nil，实际: %v, %v", got, err)
	}

	if _, err := seats.Assign(ctx, &dto.AssignSeatRequest{SeatID: seat.SeatID, StudentID: me.StudentID}); err != nil {
		t.Fatalf("Assign 应成功: %v", err)
	}

	dash, err := svc.Dashboard(ctx, studentCaller(me))
	if err != nil {
		t.Fatalf("Dashboard 应成功: %v", err)
	}
	if dash.Seat == nil || dash.Seat.SeatNumber != 12 {
		t.Errorf("首页应展示 12 号座位，实际=%v", dash.Seat)
	}
	if dash.Student.SeatNumber == nil || *dash.Student.SeatNumber != 12 {
		t.Error("学员档案应同步座位号")
	}
	if dash.RecentAlerts == nil {
		t.Error("空提醒列表应输出 []")
	}
}

func TestSelfService_Calendar(t *testing.T) {
	svc, _, st := setupTestSelfService()
	me := st.addStudent("Asha")
	st.addPayment(model.Payment{StudentID: me.StudentID, Amount: 200, Status: model.PaymentPending, Month: "May", Year: 2025,
		DueDate: time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)})

	file, err := svc.Calendar(context.Background(), studentCaller(me))
	if err != nil {
		t.Fatalf("Calendar 应成功: %v", err)
	}
	if file.ContentType != ContentTypeICS {
		t.Errorf("期望 ICS ContentType，实际=%s", file.ContentType)
	}
	if !strings.Contains(file.Body.String(), "Fee due: May 2025") {
		t.Error("日历应包含本人待缴账期")
	}
}
