// cmd/server/main.go
package main

import (
	"log"
	"path/filepath"
	"time"

	"github.com/Corphon/StorySpark/internal/app"
	"github.com/Corphon/StorySpark/internal/config"
	"github.com/Corphon/StorySpark/internal/utils"
)

func main() {
	log.Println("🚀 启动 StorySpark 服务器...")

	// 1. 加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 创建必要的目录
	if err := app.CreateDirectories(baseConfig); err != nil {
		log.Fatalf("%v", err)
	}

	// 3. 初始化日志
	logFile := filepath.Join(baseConfig.LogDir, "app_"+time.Now().Format("2006-01-02")+".log")
	if err := utils.InitLogger(logFile, baseConfig.DebugMode); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	logger := utils.GetLogger()
	defer logger.Sync()

	// 4. 初始化配置系统
	if err := config.InitConfig(baseConfig); err != nil {
		logger.Fatal("初始化配置系统失败", map[string]interface{}{"error": err})
	}
	logger.Info("✅ 配置系统初始化完成", map[string]interface{}{"port": baseConfig.Port})

	// 5. 创建服务和路由
	application, err := app.New(baseConfig)
	if err != nil {
		logger.Fatal("❌ 初始化应用失败", map[string]interface{}{"error": err})
	}

	logger.Infof("🌐 服务器启动在端口 %s", baseConfig.Port)
	logger.Infof("🔗 访问地址: http://localhost:%s", baseConfig.Port)

	if err := application.Run(); err != nil {
		logger.Error("❌ 服务器异常退出", map[string]interface{}{"error": err})
	}
}
