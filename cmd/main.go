package main

import (
	"github.com/quickserve/pos-order/internal/app"
	"github.com/quickserve/pos-order/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
