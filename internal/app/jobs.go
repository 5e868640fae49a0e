package app

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 1m", func() {
		a.SchedSweepSessionsTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedPurgeOldOrdersTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSweepSessionsTask removes idle conversations so stale flows do not
// block new ones.
func (a *Application) SchedSweepSessionsTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	idleSecs := a.configManager.GetInt64("session", "IdleTimeoutSecs")
	if idleSecs <= 0 {
		idleSecs = 300
	}
	removed := a.sessions.Sweep(time.Duration(idleSecs) * time.Second)
	if removed > 0 {
		zap.L().Info("swept idle conversations", zap.Int("removed", removed))
	}
	metrics.SetGauge("bot_sessions_active", int64(a.sessions.Len()))
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Collect CPU usage
	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100)) // Store as percentage * 100
	}

	// Collect memory usage
	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	// Collect process CPU usage
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("shopbot_cpuuse", int64(cpuuse*100)) // Store as percentage * 100
	}

	// Collect process memory usage
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("shopbot_memuse", int64(meminfo.RSS/1024/1024))
	}
}

// SchedPurgeOldOrdersTask deletes orders past the retention window together
// with their line items. Disabled unless orders.RetentionDays is set.
func (a *Application) SchedPurgeOldOrdersTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	idays := a.configManager.GetInt("orders", "RetentionDays")
	if idays <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Hour * 24 * time.Duration(idays))

	var stale []domain.Order
	if err := a.gormDB.Where("created_at < ?", cutoff).Find(&stale).Error; err != nil {
		zap.L().Error("failed to query stale orders", zap.Error(err))
		return
	}
	for _, o := range stale {
		a.gormDB.Where("order_id = ?", o.ID).Delete(&domain.OrderItem{})
		a.gormDB.Delete(&domain.Order{}, o.ID)
	}
	if len(stale) > 0 {
		zap.L().Info("purged old orders", zap.Int("count", len(stale)))
	}
}
